package models

// ProgressResponse is the response for GET /api/v1/crawl/progress.
type ProgressResponse struct {
	RunID         string       `json:"run_id,omitempty"`
	Query         string       `json:"query,omitempty"`
	Location      string       `json:"location,omitempty"`
	Count         int          `json:"count"`
	Target        int          `json:"target"`
	Status        string       `json:"status"`
	IsActive      bool         `json:"is_active"`
	DownloadReady bool         `json:"download_ready"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// MessageResponse acknowledges a control-plane command.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Target  int    `json:"target,omitempty"`
}

// ResultsResponse is the response for GET /api/v1/crawl/results.
type ResultsResponse struct {
	Total   int              `json:"total"`
	Results []BusinessRecord `json:"results"`
}

// ErrorResponse wraps an ErrorDetail for failed requests.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"` // "healthy"
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
	IsActive bool   `json:"is_active"`
	Archived *int   `json:"archived,omitempty"` // records in the run archive
}
