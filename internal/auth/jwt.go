// Package auth verifies and issues the bearer tokens that identify a
// websocket connection.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Claims accepts both token shapes issued by the identity service:
// login tokens carry id/email/name, others only sub/email.
type Claims struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}

type JWTManager struct {
	config Config
}

func NewJWTManager(config Config) *JWTManager {
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	return &JWTManager{config: config}
}

// Verify checks signature, expiry and, when configured, the issuer, and
// returns the identity in the token.
func (m *JWTManager) Verify(tokenString string) (*domain.User, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	var opts []jwt.ParserOption
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	user, err := domain.NewUser(claims.UserID(), claims.Email, claims.Name)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// Issue signs a token for user. The server only verifies; issuing exists
// for local tooling and tests.
func (m *JWTManager) Issue(user domain.User) (string, error) {
	return m.IssueWithTTL(user, m.config.TokenTTL)
}

func (m *JWTManager) IssueWithTTL(user domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    string(user.ID),
		Email: user.Email,
		Name:  user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   string(user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
