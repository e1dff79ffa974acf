package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/StudyRoom/internal/app/hub"
	"github.com/dkeye/StudyRoom/internal/auth"
	"github.com/dkeye/StudyRoom/internal/config"
	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func setup(t *testing.T) (*gin.Engine, *hub.Hub, *auth.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Mode:       "test",
		Secret:     "cookie-secret",
		TokenTTL:   time.Hour,
		PingPeriod: time.Second,
		PongWait:   2 * time.Second,
	}
	h := hub.New(ctx, nil, nil, hub.Options{})
	t.Cleanup(h.Shutdown)
	jwtm := auth.NewJWTManager(auth.Config{Secret: "jwt-secret", TokenTTL: time.Hour})
	return SetupRouter(ctx, cfg, h, jwtm), h, jwtm
}

func TestHealth(t *testing.T) {
	r, _, _ := setup(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestPresenceRequiresAuth(t *testing.T) {
	r, h, jwtm := setup(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms/r1/presence", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user, _ := domain.NewUser("alice", "", "Alice")
	_, err := h.Connect("A", user, nopConn{}, func() {})
	require.NoError(t, err)
	_, err = h.JoinRoom(context.Background(), "A", "r1")
	require.NoError(t, err)

	token, err := jwtm.Issue(*user)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/presence", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		RoomID  string         `json:"roomId"`
		Members []core.PeerDTO `json:"members"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "r1", body.RoomID)
	require.Len(t, body.Members, 1)
	assert.Equal(t, core.SessionID("A"), body.Members[0].SocketID)
	assert.Equal(t, "Alice", body.Members[0].Name)
}

func TestSessionLogin(t *testing.T) {
	r, _, jwtm := setup(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"token":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwtm.Issue(domain.User{ID: "alice"})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"token":"`+token+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// The session cookie alone authenticates later requests.
	req = httptest.NewRequest(http.MethodGet, "/api/rooms/r1/presence", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
