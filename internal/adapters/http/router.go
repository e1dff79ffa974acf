package http

import (
	"context"
	"net/http"

	"github.com/dkeye/StudyRoom/internal/adapters/signal"
	"github.com/dkeye/StudyRoom/internal/app/hub"
	"github.com/dkeye/StudyRoom/internal/config"
	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const userKey = "user"

// AuthMiddleware resolves the bearer token of a plain HTTP request.
func AuthMiddleware(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := verifier.Verify(signal.TokenFromRequest(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *hub.Hub, verifier core.TokenVerifier) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.TokenTTL.Seconds()), HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("StudyRoomSessions", store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(h, verifier, signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		SendBuffer:   cfg.SendBuffer,
		ChatLimit:    cfg.ChatRateLimit,
		ChatInterval: cfg.ChatRateInterval,
	})

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		rooms, conns, countdowns := h.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       rooms,
			"connections": conns,
			"countdowns":  countdowns,
		})
	})

	api.GET("/ws/rooms", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	api.POST("/session", sessionLogin(verifier))
	api.DELETE("/session", sessionLogout)

	authed := api.Group("", AuthMiddleware(verifier))
	authed.GET("/rooms/:roomId/presence", func(c *gin.Context) {
		room, err := domain.ParseRoomID(c.Param("roomId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"roomId":  room,
			"members": h.Presence(room),
		})
	})

	return r
}

// sessionLogin stores a verified bearer token in the cookie session so
// browser websocket handshakes can authenticate without a query token.
func sessionLogin(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Token string `json:"token"`
		}
		_ = c.ShouldBindJSON(&body)
		token := body.Token
		if token == "" {
			token = signal.TokenFromRequest(c)
		}
		user, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		s := sessions.Default(c)
		s.Set(signal.SessionTokenKey, token)
		if err := s.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("session started")
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func sessionLogout(c *gin.Context) {
	s := sessions.Default(c)
	s.Delete(signal.SessionTokenKey)
	_ = s.Save()
	c.Status(http.StatusNoContent)
}
