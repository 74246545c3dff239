package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/leadscout/api/handler"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/crawl"
	"github.com/use-agent/leadscout/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	active   bool
	target   int
	query    string
	stopped  int
	resets   int
	records  []models.BusinessRecord
	download string
	limit    int

	exportErr *models.ScrapeError
}

func (f *fakeRunner) Start(query, location string, target int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return "", crawl.ErrAlreadyRunning
	}
	f.active, f.query, f.target = true, query, target
	return "run-1", nil
}

func (f *fakeRunner) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	was := f.active
	f.active = false
	return was
}

func (f *fakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.active = false
}

func (f *fakeRunner) Progress() crawl.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return crawl.Snapshot{
		Count:  len(f.records),
		Target: f.target,
		Status: "Scrolling... (1/20)",
		Active: f.active,
		Err:    f.exportErr,
	}
}

func (f *fakeRunner) Results(limit int) []models.BusinessRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	if limit < len(f.records) {
		return f.records[:limit]
	}
	return f.records
}

func (f *fakeRunner) DownloadPath() (string, bool) {
	return f.download, f.download != ""
}

type fakeArchive struct {
	records map[string][]models.BusinessRecord // "query|location"
	err     error
}

func (a *fakeArchive) Records(_ context.Context, query, location string) ([]models.BusinessRecord, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.records[query+"|"+location], nil
}

func (a *fakeArchive) Count(context.Context) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	n := 0
	for _, recs := range a.records {
		n += len(recs)
	}
	return n, nil
}

func testRouter(t *testing.T, r *fakeRunner, mutate ...func(*config.Config)) *gin.Engine {
	t.Helper()
	return archiveRouter(t, r, nil, mutate...)
}

func archiveRouter(t *testing.T, r *fakeRunner, a handler.Archive, mutate ...func(*config.Config)) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
	for _, m := range mutate {
		m(cfg)
	}
	return NewRouter(r, a, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Now())
}

func do(e *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := testRouter(t, &fakeRunner{active: true})
	w := do(e, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.IsActive)
}

func TestHealth_ArchivedCount(t *testing.T) {
	rec := models.NewBusinessRecord("u/a")
	rec.Name = models.Known("Alpha")
	a := &fakeArchive{records: map[string][]models.BusinessRecord{"pizza|Austin": {rec, rec}}}

	w := do(archiveRouter(t, &fakeRunner{}, a), http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	require.NotNil(t, resp.Archived)
	assert.Equal(t, 2, *resp.Archived)

	w = do(testRouter(t, &fakeRunner{}), http.MethodGet, "/api/v1/health", "")
	assert.NotContains(t, w.Body.String(), "archived")
}

func TestArchivedRecords(t *testing.T) {
	rec := models.NewBusinessRecord("u/a")
	rec.Name = models.Known("Alpha")
	a := &fakeArchive{records: map[string][]models.BusinessRecord{"pizza|Austin": {rec}}}
	e := archiveRouter(t, &fakeRunner{}, a)

	w := do(e, http.MethodGet, "/api/v1/crawl/archive?query=pizza&location=Austin", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.ResultsResponse](t, w)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Alpha", resp.Results[0].Name.String())

	w = do(e, http.MethodGet, "/api/v1/crawl/archive?query=sushi&location=Austin", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[models.ResultsResponse](t, w).Total)

	w = do(e, http.MethodGet, "/api/v1/crawl/archive?query=pizza", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCodeInvalidInput, decode[models.ErrorResponse](t, w).Error.Code)

	a.err = errors.New("database is locked")
	w = do(e, http.MethodGet, "/api/v1/crawl/archive?query=pizza&location=Austin", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(testRouter(t, &fakeRunner{}), http.MethodGet, "/api/v1/crawl/archive?query=pizza&location=Austin", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeNotFound, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestProgress_ExportError(t *testing.T) {
	r := &fakeRunner{}
	e := testRouter(t, r)

	w := do(e, http.MethodGet, "/api/v1/crawl/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"error"`)

	r.exportErr = models.NewScrapeError(models.ErrCodeExport, "export failed", errors.New("disk full"))
	w = do(e, http.MethodGet, "/api/v1/crawl/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.ProgressResponse](t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeExport, resp.Error.Code)
	assert.Equal(t, "export failed", resp.Error.Message)
}

func TestStartCrawl_Validation(t *testing.T) {
	e := testRouter(t, &fakeRunner{})

	w := do(e, http.MethodPost, "/api/v1/crawl/start", `{"query":"pizza"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCodeInvalidInput, decode[models.ErrorResponse](t, w).Error.Code)

	w = do(e, http.MethodPost, "/api/v1/crawl/start", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartCrawl_ClampsLimit(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{`{"query":"q","location":"l"}`, 1000},
		{`{"query":"q","location":"l","limit":5}`, 20},
		{`{"query":"q","location":"l","limit":5000}`, 1000},
		{`{"query":"q","location":"l","limit":"150"}`, 150},
		{`{"query":"q","location":"l","limit":"abc"}`, 1000},
	}
	for _, tt := range tests {
		r := &fakeRunner{}
		w := do(testRouter(t, r), http.MethodPost, "/api/v1/crawl/start", tt.body)

		require.Equal(t, http.StatusOK, w.Code, tt.body)
		resp := decode[models.MessageResponse](t, w)
		assert.Equal(t, tt.want, resp.Target, tt.body)
		assert.Equal(t, tt.want, r.target, tt.body)
		assert.Equal(t, "run-1", resp.RunID)
	}
}

func TestStartCrawl_AlreadyRunning(t *testing.T) {
	e := testRouter(t, &fakeRunner{active: true})

	w := do(e, http.MethodPost, "/api/v1/crawl/start", `{"query":"q","location":"l"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeAlreadyRunning, decode[models.ErrorResponse](t, w).Error.Code)

	w = do(e, http.MethodPost, "/start-scraping", `{"query":"q","location":"l"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Scraping already in progress", decode[map[string]string](t, w)["error"])
}

func TestStopAndReset(t *testing.T) {
	r := &fakeRunner{active: true}
	e := testRouter(t, r)

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/v1/crawl/stop", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/reset-scraper", "").Code)
	assert.Equal(t, 1, r.stopped)
	assert.Equal(t, 1, r.resets)
}

func TestResults_Limit(t *testing.T) {
	r := &fakeRunner{}
	for range 60 {
		rec := models.NewBusinessRecord("u")
		rec.Name = models.Known("Shop")
		r.records = append(r.records, rec)
	}
	e := testRouter(t, r)

	w := do(e, http.MethodGet, "/api/v1/crawl/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, decode[models.ResultsResponse](t, w).Total)

	w = do(e, http.MethodGet, "/results?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 3)

	w = do(e, http.MethodGet, "/results?limit=0", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestProgress(t *testing.T) {
	e := testRouter(t, &fakeRunner{active: true, target: 40})

	w := do(e, http.MethodGet, "/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[map[string]any](t, w)
	assert.Equal(t, float64(40), p["target"])
	assert.Equal(t, true, p["is_active"])
	assert.Equal(t, false, p["download_ready"])
	assert.Equal(t, "Scrolling... (1/20)", p["status"])
}

func TestDownload(t *testing.T) {
	r := &fakeRunner{}
	e := testRouter(t, r)

	w := do(e, http.MethodGet, "/api/v1/crawl/download", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeNotFound, decode[models.ErrorResponse](t, w).Error.Code)

	w = do(e, http.MethodGet, "/download", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not ready", decode[map[string]string](t, w)["error"])

	path := filepath.Join(t.TempDir(), "business_data_20260101_120000.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx"), 0o644))
	r.download = path

	w = do(e, http.MethodGet, "/api/v1/crawl/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "business_data_20260101_120000.xlsx")
	assert.Equal(t, "xlsx", w.Body.String())
}

func TestAuth(t *testing.T) {
	e := testRouter(t, &fakeRunner{}, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	})

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/v1/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/v1/crawl/progress", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/progress", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/v1/crawl/progress", "", "Authorization", "Bearer secret").Code)
}

func TestRateLimit(t *testing.T) {
	e := testRouter(t, &fakeRunner{}, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/v1/crawl/progress", "").Code)
	w := do(e, http.MethodGet, "/api/v1/crawl/progress", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestCORS(t *testing.T) {
	e := testRouter(t, &fakeRunner{}, func(c *config.Config) {
		c.CORS.AllowedOrigins = []string{"chrome-extension://abc"}
	})

	w := do(e, http.MethodOptions, "/api/v1/crawl/start", "", "Origin", "chrome-extension://abc")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "chrome-extension://abc", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(e, http.MethodGet, "/api/v1/health", "", "Origin", "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
