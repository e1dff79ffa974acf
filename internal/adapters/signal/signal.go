package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/StudyRoom/internal/app/hub"
	"github.com/dkeye/StudyRoom/internal/auth"
	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SessionTokenKey is where the cookie session keeps a bearer token.
const SessionTokenKey = "token"

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
	ChatLimit    int
	ChatInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.ChatLimit <= 0 {
		o.ChatLimit = 5
	}
	if o.ChatInterval <= 0 {
		o.ChatInterval = 5 * time.Second
	}
}

type SignalWSController struct {
	Hub  *hub.Hub
	Auth core.TokenVerifier
	opts Options
	chat *RateLimiter
}

func NewSignalWSController(h *hub.Hub, verifier core.TokenVerifier, opts Options) *SignalWSController {
	opts.withDefaults()
	return &SignalWSController{
		Hub:  h,
		Auth: verifier,
		opts: opts,
		chat: NewRateLimiter(opts.ChatLimit, opts.ChatInterval),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TokenFromRequest looks for a bearer token in the query string, the
// Authorization header and the cookie session, in that order.
func TokenFromRequest(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if t := auth.BearerToken(c.GetHeader("Authorization")); t != "" {
		return t
	}
	if _, ok := c.Get(sessions.DefaultKey); ok {
		if t, ok := sessions.Default(c).Get(SessionTokenKey).(string); ok {
			return t
		}
	}
	return ""
}

// HandleSignal authenticates the handshake and upgrades it. A connection
// without a valid identity is refused before the upgrade and never reaches the hub.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	user, err := ctl.Auth.Verify(TokenFromRequest(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	sid := core.SessionID(uuid.NewString())
	ctx, cancel := context.WithCancel(ctx)
	if _, err := ctl.Hub.Connect(sid, user, conn, cancel); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("hub connect")
		cancel()
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
