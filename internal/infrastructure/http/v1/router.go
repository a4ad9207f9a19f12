// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"txchain/internal/infrastructure/http/v1/handlers"
	"txchain/internal/infrastructure/http/v1/middleware"
	"txchain/internal/metadata"
	"txchain/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Ledger serves accounts and transfers
	Ledger handlers.LedgerService

	// Registry exposes registered targets; optional
	Registry *metadata.Registry

	// Ping backs the readiness probe; optional
	Ping handlers.PingFunc

	// Info is merged into /health/info
	Info map[string]any

	// Metrics serves /metrics when set
	Metrics http.Handler

	// Debug enables gin debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Flow()) // one flow per request, before anything dispatches
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Ping, cfg.Info)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")
	{
		if cfg.Ledger != nil {
			handlers.NewLedgerHandler(base, cfg.Ledger).RegisterRoutes(v1)
		}
		registerMetaRoutes(v1, base, cfg)
	}

	return router
}

// registerMetaRoutes registers target metadata endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Registry == nil {
		return
	}
	handler := handlers.NewMetadataHandler(base, cfg.Registry)
	meta := rg.Group("/meta/targets")
	{
		meta.GET("", handler.ListTargets)
		meta.GET("/:name", handler.GetTarget)
	}
}
