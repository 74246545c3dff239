package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health. The archived count is
// reported only when an archive is configured and readable.
func Health(r Runner, a Archive, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:   "healthy",
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Version:  Version,
			IsActive: r.Progress().Active,
		}
		if a != nil {
			if n, err := a.Count(c.Request.Context()); err != nil {
				slog.Warn("archive count failed", "error", err)
			} else {
				resp.Archived = &n
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
