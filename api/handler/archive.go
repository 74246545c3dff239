package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/models"
)

// Archive is the read side of the run archive.
type Archive interface {
	Records(ctx context.Context, query, location string) ([]models.BusinessRecord, error)
	Count(ctx context.Context) (int, error)
}

var errArchiveDisabled = models.NewScrapeError(models.ErrCodeNotFound, "run archive is not enabled", nil)

// ArchivedRecords returns a handler for
// GET /api/v1/crawl/archive?query=Q&location=L. A nil archive answers 404.
func ArchivedRecords(a Archive) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			respondError(c, errArchiveDisabled)
			return
		}
		query, location := c.Query("query"), c.Query("location")
		if query == "" || location == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "query and location are required", nil))
			return
		}

		recs, err := a.Records(c.Request.Context(), query, location)
		if err != nil {
			respondError(c, err)
			return
		}
		if recs == nil {
			recs = []models.BusinessRecord{}
		}
		c.JSON(http.StatusOK, models.ResultsResponse{Total: len(recs), Results: recs})
	}
}
