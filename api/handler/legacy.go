package handler

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/crawl"
	"github.com/use-agent/leadscout/models"
)

// Legacy routes keep the response shapes the dashboard and browser
// extension were written against: bare {"message"} / {"error"} objects
// and a plain results array.

// LegacyRoot returns a handler for GET /.
func LegacyRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running", "message": "Leadscout API is active"})
	}
}

// LegacyStart returns a handler for POST /start-scraping.
func LegacyStart(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindStart(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query or location"})
			return
		}
		if _, err := r.Start(req.Query, req.Location, req.Target()); err != nil {
			status := http.StatusInternalServerError
			if crawl.IsAlreadyRunning(err) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": legacyMessage(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Scraping started"})
	}
}

// LegacyStop returns a handler for POST /stop-scraping.
func LegacyStop(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.Stop()
		c.JSON(http.StatusOK, gin.H{"message": "Scraping stopped"})
	}
}

// LegacyReset returns a handler for POST /reset-scraper.
func LegacyReset(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.Reset()
		c.JSON(http.StatusOK, gin.H{"message": "Scraper reset successfully"})
	}
}

// LegacyProgress returns a handler for GET /progress.
func LegacyProgress(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := progress(r)
		c.JSON(http.StatusOK, gin.H{
			"count":          p.Count,
			"target":         p.Target,
			"status":         p.Status,
			"is_active":      p.IsActive,
			"download_ready": p.DownloadReady,
		})
	}
}

// LegacyResults returns a handler for GET /results.
func LegacyResults(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, results(r, c.Query("limit")))
	}
}

// LegacyDownload returns a handler for GET /download.
func LegacyDownload(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := r.DownloadPath()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not ready"})
			return
		}
		c.FileAttachment(path, filepath.Base(path))
	}
}

func legacyMessage(err error) string {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
