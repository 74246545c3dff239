// Package api wires the control-plane routes.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/api/handler"
	"github.com/use-agent/leadscout/api/middleware"
	"github.com/use-agent/leadscout/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestLog → CORS
//	Crawl:   Auth (if enabled) → RateLimit
//
// Health and the legacy root stay outside auth so uptime monitors always reach them.
// archive may be nil when the run archive is disabled.
func NewRouter(r handler.Runner, archive handler.Archive, cfg *config.Config, log *slog.Logger, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	v1 := e.Group("/api/v1")
	v1.GET("/health", handler.Health(r, archive, startTime))

	guard := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		guard = append(guard, middleware.Auth(cfg.Auth.APIKeys))
	}
	guard = append(guard, middleware.RateLimit(cfg.RateLimit))

	crawl := v1.Group("/crawl", guard...)
	crawl.POST("/start", handler.StartCrawl(r))
	crawl.POST("/stop", handler.StopCrawl(r))
	crawl.POST("/reset", handler.ResetCrawl(r))
	crawl.GET("/progress", handler.Progress(r))
	crawl.GET("/results", handler.Results(r))
	crawl.GET("/download", handler.Download(r))
	crawl.GET("/archive", handler.ArchivedRecords(archive))

	e.GET("/", handler.LegacyRoot())
	legacy := e.Group("", guard...)
	legacy.POST("/start-scraping", handler.LegacyStart(r))
	legacy.POST("/stop-scraping", handler.LegacyStop(r))
	legacy.POST("/reset-scraper", handler.LegacyReset(r))
	legacy.GET("/progress", handler.LegacyProgress(r))
	legacy.GET("/results", handler.LegacyResults(r))
	legacy.GET("/download", handler.LegacyDownload(r))

	return e
}
