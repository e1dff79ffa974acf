package auth

import (
	"testing"
	"time"

	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *JWTManager {
	return NewJWTManager(Config{Secret: "test-secret", Issuer: "test", TokenTTL: time.Hour})
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	m := testManager()
	token, err := m.Issue(domain.User{ID: "user-1", Email: "a@example.com", Username: "alice"})
	require.NoError(t, err)

	user, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), user.ID)
	assert.Equal(t, "a@example.com", user.Email)
	assert.Equal(t, "alice", user.Username)
}

func TestJWTManager_SubjectOnlyToken(t *testing.T) {
	m := testManager()
	claims := jwt.MapClaims{
		"sub":   "user-2",
		"iss":   "test",
		"email": "b@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	user, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-2"), user.ID)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := testManager()
	other := NewJWTManager(Config{Secret: "other-secret"})
	foreign, err := other.Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)
	elsewhere := NewJWTManager(Config{Secret: "test-secret", Issuer: "elsewhere"})
	wrongIssuer, err := elsewhere.Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)
	noIssuer, err := NewJWTManager(Config{Secret: "test-secret"}).Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)
	expired, err := m.IssueWithTTL(domain.User{ID: "user-1"}, -time.Minute)
	require.NoError(t, err)
	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "wrong secret", token: foreign, want: ErrInvalidToken},
		{name: "expired", token: expired, want: ErrExpiredToken},
		{name: "wrong issuer", token: wrongIssuer, want: ErrInvalidToken},
		{name: "missing issuer", token: noIssuer, want: ErrInvalidToken},
		{name: "no user id", token: noID, want: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTManager_IssuerOptional(t *testing.T) {
	m := NewJWTManager(Config{Secret: "test-secret"})
	token, err := NewJWTManager(Config{Secret: "test-secret", Issuer: "anyone"}).Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)

	user, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), user.ID)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
