// Package handler implements the control-plane HTTP handlers.
package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/crawl"
	"github.com/use-agent/leadscout/models"
)

// Runner is the crawl controller as seen by the handlers.
type Runner interface {
	Start(query, location string, target int) (string, error)
	Stop() bool
	Reset()
	Progress() crawl.Snapshot
	Results(limit int) []models.BusinessRecord
	DownloadPath() (string, bool)
}

var errFileNotReady = models.NewScrapeError(models.ErrCodeNotFound, "File not ready", nil)

// StartCrawl returns a handler for POST /api/v1/crawl/start.
func StartCrawl(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindStart(c)
		if err != nil {
			respondError(c, err)
			return
		}

		target := req.Target()
		runID, err := r.Start(req.Query, req.Location, target)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.MessageResponse{
			Success: true,
			Message: "Scraping started",
			RunID:   runID,
			Target:  target,
		})
	}
}

// StopCrawl returns a handler for POST /api/v1/crawl/stop. It does not
// wait for the run to exit.
func StopCrawl(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.Stop()
		c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "Scraping stopped"})
	}
}

// ResetCrawl returns a handler for POST /api/v1/crawl/reset.
func ResetCrawl(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.Reset()
		c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "Scraper reset successfully"})
	}
}

// Progress returns a handler for GET /api/v1/crawl/progress.
func Progress(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, progress(r))
	}
}

// Results returns a handler for GET /api/v1/crawl/results?limit=N.
func Results(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs := results(r, c.Query("limit"))
		c.JSON(http.StatusOK, models.ResultsResponse{Total: len(recs), Results: recs})
	}
}

// Download returns a handler for GET /api/v1/crawl/download.
func Download(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := r.DownloadPath()
		if !ok {
			respondError(c, errFileNotReady)
			return
		}
		c.FileAttachment(path, filepath.Base(path))
	}
}

func bindStart(c *gin.Context) (*models.StartRequest, error) {
	var req models.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("invalid body: %v", err), err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func progress(r Runner) models.ProgressResponse {
	snap := r.Progress()
	_, ready := r.DownloadPath()
	resp := models.ProgressResponse{
		RunID:         snap.RunID,
		Query:         snap.Query,
		Location:      snap.Location,
		Count:         snap.Count,
		Target:        snap.Target,
		Status:        snap.Status,
		IsActive:      snap.Active,
		DownloadReady: ready,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.ToDetail()
	}
	return resp
}

// results applies the ?limit= rules: default 50, zero yields nothing.
func results(r Runner, raw string) []models.BusinessRecord {
	limit := models.DefaultResultsLimit
	if raw != "" {
		limit = models.ParseResultsLimit(raw)
	}
	if limit == 0 {
		return []models.BusinessRecord{}
	}
	return r.Results(limit)
}
