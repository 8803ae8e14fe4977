package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/issuechat-server/internal/config"
	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/notify"
	"github.com/vovakirdan/issuechat-server/internal/store"
)

// StatsSource reports notification delivery counters.
type StatsSource interface {
	Stats() notify.Stats
}

// NewServer builds the HTTP server. /ws is served straight from the mux;
// everything else goes through the gin router. stats may be nil.
func NewServer(hub *core.Hub, dir store.Directory, stats StatsSource, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, dir, stats, logger)
	ws := NewWSHandler(hub, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ClientBuffer:       cfg.ClientBuffer,
	}, logger)

	router.GET("/health", api.Health)
	router.GET("/chat/:roomId", api.GetChatHistory)

	group := router.Group("/api")
	{
		group.GET("/rooms/:room/presence", api.GetPresence)
		group.POST("/rooms/:room/messages", api.PostMessage)
		group.POST("/users", api.CreateUser)
		group.GET("/users", api.ListUsers)
		group.POST("/issues", api.CreateIssue)
		group.GET("/issues/:id", api.GetIssue)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
