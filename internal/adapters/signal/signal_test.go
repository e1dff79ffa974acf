package signal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/StudyRoom/internal/adapters/store"
	"github.com/dkeye/StudyRoom/internal/app/hub"
	"github.com/dkeye/StudyRoom/internal/auth"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv *httptest.Server
	jwt *auth.JWTManager
	hub *hub.Hub
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	return newTestServerWithStore(t, opts, store.Options{AutoCreateRooms: true})
}

func newTestServerWithStore(t *testing.T, opts Options, storeOpts store.Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), storeOpts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.New(ctx, st, st, hub.Options{CountdownTick: 10 * time.Millisecond})
	jwtm := auth.NewJWTManager(auth.Config{Secret: "test-secret", Issuer: "studyroom", TokenTTL: time.Hour})
	ctrl := NewSignalWSController(h, jwtm, opts)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		h.Shutdown()
		cancel()
		srv.Close()
		_ = st.Close()
	})
	return &testServer{srv: srv, jwt: jwtm, hub: h}
}

func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := ts.jwt.Issue(domain.User{ID: domain.UserID(userID), Username: userID})
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil skips frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var m map[string]any
		require.NoError(t, conn.ReadJSON(&m), "waiting for %s", typ)
		if m["type"] == typ {
			return m
		}
	}
}

func TestHandshakeRequiresToken(t *testing.T) {
	ts := newTestServer(t, Options{})
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, sessions, _ := ts.hub.Stats()
	assert.Equal(t, 0, sessions)
}

func TestHandshakeAcceptsBearerHeader(t *testing.T) {
	ts := newTestServer(t, Options{})
	token, err := ts.jwt.Issue(domain.User{ID: "alice"})
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()

	send(t, conn, map[string]any{"type": "whoami", "requestId": "1"})
	who := readUntil(t, conn, "whoami")
	assert.Equal(t, "alice", who["user"].(map[string]any)["id"])
	assert.Equal(t, "1", who["requestId"])
}

func TestJoinAndSignal(t *testing.T) {
	ts := newTestServer(t, Options{})
	a := ts.dial(t, "alice")
	b := ts.dial(t, "bob")

	send(t, a, map[string]any{"type": "joinRoom", "roomId": "study-1", "requestId": "j1"})
	readUntil(t, a, "roomUsers")
	ack := readUntil(t, a, "ack")
	assert.Equal(t, "j1", ack["requestId"])

	send(t, b, map[string]any{"type": "joinRoom", "roomId": "study-1"})
	existing := readUntil(t, b, "existing-users")["existing"].([]any)
	require.Len(t, existing, 1)
	aSID := existing[0].(map[string]any)["socketId"].(string)
	readUntil(t, b, "roomUsers")

	joined := readUntil(t, a, "user-joined")
	bSID := joined["socketId"].(string)
	assert.Equal(t, "bob", joined["userId"])

	send(t, a, map[string]any{"type": "offer", "roomId": "study-1", "toConnectionId": bSID, "sdp": map[string]any{"type": "offer", "sdp": "x"}})
	offer := readUntil(t, b, "offer")
	assert.Equal(t, aSID, offer["fromConnectionId"])

	send(t, b, map[string]any{"type": "answer", "roomId": "study-1", "toConnectionId": aSID, "sdp": map[string]any{"type": "answer", "sdp": "y"}})
	answer := readUntil(t, a, "answer")
	assert.Equal(t, "y", answer["sdp"].(map[string]any)["sdp"])

	// A late duplicate answer is dropped silently, so the candidate is the next frame A sees.
	send(t, b, map[string]any{"type": "answer", "roomId": "study-1", "toConnectionId": aSID, "sdp": map[string]any{"type": "answer", "sdp": "late"}})
	send(t, b, map[string]any{"type": "ice-candidate", "roomId": "study-1", "toConnectionId": aSID, "candidate": map[string]any{"candidate": "candidate:1 1 UDP 1 10.0.0.1 5000 typ host"}})
	var next map[string]any
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, a.ReadJSON(&next))
	assert.Equal(t, "ice-candidate", next["type"])
	assert.Equal(t, bSID, next["fromConnectionId"])

	require.NoError(t, b.Close())
	left := readUntil(t, a, "user-left")
	assert.Equal(t, bSID, left["socketId"])
}

func TestJoinUnknownRoomReportsError(t *testing.T) {
	ts := newTestServerWithStore(t, Options{}, store.Options{AutoCreateRooms: false})
	a := ts.dial(t, "alice")

	send(t, a, map[string]any{"type": "joinRoom", "roomId": "no-such-room", "requestId": "j1"})
	readUntil(t, a, "existing-users")
	var next map[string]any
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, a.ReadJSON(&next))
	assert.Equal(t, "error", next["type"], "no roomUsers for a room the store does not know")
	assert.Equal(t, "joinRoom", next["event"])
	assert.Equal(t, "j1", next["requestId"])
	assert.Equal(t, "room_not_found", next["error"])
}

func TestChatAndRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{ChatLimit: 2, ChatInterval: time.Minute})
	a := ts.dial(t, "alice")

	// Rejected messages outside the room do not use up the quota.
	for i := 0; i < 3; i++ {
		send(t, a, map[string]any{"type": "chat:message", "roomId": "r1", "text": "hi", "requestId": "c0"})
		notIn := readUntil(t, a, "error")
		assert.Equal(t, "not_in_room", notIn["error"])
	}

	send(t, a, map[string]any{"type": "joinRoom", "roomId": "r1"})
	readUntil(t, a, "roomUsers")

	for _, id := range []string{"c1", "c2"} {
		send(t, a, map[string]any{"type": "chat:message", "roomId": "r1", "text": "hello", "requestId": id})
		msg := readUntil(t, a, "chat:message")
		assert.Equal(t, "hello", msg["message"].(map[string]any)["text"])
		ack := readUntil(t, a, "ack")
		assert.Equal(t, id, ack["requestId"])
	}

	send(t, a, map[string]any{"type": "chat:message", "roomId": "r1", "text": "again", "requestId": "c3"})
	limited := readUntil(t, a, "error")
	assert.Equal(t, "rate_limited", limited["error"])
	assert.Equal(t, "c3", limited["requestId"])
}

func TestControlEvents(t *testing.T) {
	ts := newTestServer(t, Options{})
	a := ts.dial(t, "alice")

	send(t, a, map[string]any{"type": "ping", "requestId": "p"})
	assert.Equal(t, "p", readUntil(t, a, "pong")["requestId"])

	send(t, a, map[string]any{"type": "nope"})
	assert.Equal(t, "unknown_event", readUntil(t, a, "error")["error"])

	send(t, a, map[string]any{"type": "joinRoom", "roomId": ""})
	assert.Equal(t, "bad_payload", readUntil(t, a, "error")["error"])

	send(t, a, map[string]any{"type": "joinRoom", "roomId": "r1"})
	readUntil(t, a, "roomUsers")
	send(t, a, map[string]any{"type": "startPomodoro", "roomId": "r1", "minutes": 1.5})
	upd := readUntil(t, a, "pomodoroUpdate")
	assert.EqualValues(t, 90, upd["remaining"])

	send(t, a, map[string]any{"type": "leaveRoom"})
	assert.Equal(t, "r1", readUntil(t, a, "left")["roomId"])
}
