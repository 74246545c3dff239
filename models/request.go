package models

import (
	"math"
	"strconv"
	"strings"
)

// Crawl target bounds applied to StartRequest.Limit.
const (
	MinLimit     = 20
	MaxLimit     = 1000
	DefaultLimit = 1000

	// DefaultResultsLimit is used by GET /results when no usable limit is given.
	DefaultResultsLimit = 50
)

// StartRequest is the payload for POST /api/v1/crawl/start.
type StartRequest struct {
	// Query is the search phrase, e.g. "coffee shops". Required.
	Query string `json:"query"`

	// Location narrows the search, e.g. "Berlin". Required.
	Location string `json:"location"`

	// Limit is the target record count. Accepts a JSON number or a numeric
	// string; anything else falls back to DefaultLimit.
	Limit any `json:"limit,omitempty"`
}

// Validate trims the request and rejects missing fields.
func (r *StartRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	r.Location = strings.TrimSpace(r.Location)
	if r.Query == "" || r.Location == "" {
		return NewScrapeError(ErrCodeInvalidInput, "query and location are required", nil)
	}
	return nil
}

// Target returns the clamped crawl target.
func (r *StartRequest) Target() int {
	return ParseLimit(r.Limit)
}

// ParseLimit converts a loosely typed limit into a target within
// [MinLimit, MaxLimit]. Unparseable input yields DefaultLimit.
func ParseLimit(v any) int {
	n := DefaultLimit
	switch t := v.(type) {
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			n = clampFloat(t)
		}
	case int:
		n = t
	case int64:
		n = clampFloat(float64(t))
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			n = i
		}
	}
	return ClampLimit(n)
}

// ClampLimit bounds n to [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func clampFloat(f float64) int {
	switch {
	case f > MaxLimit:
		return MaxLimit
	case f < MinLimit:
		return MinLimit
	}
	return int(f)
}

// ParseResultsLimit parses the ?limit= query value for GET /results.
// Missing, non-numeric or negative values yield DefaultResultsLimit.
func ParseResultsLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return DefaultResultsLimit
	}
	return n
}
