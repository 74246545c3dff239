package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleStartCrawl(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/crawl/start", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"run_id":"abc","target":40}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, apiKey: "k", http: srv.Client()}
	res := callTool(t, handleStartCrawl(c), map[string]any{"query": "dentists", "location": "Austin", "limit": 40})

	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "abc")
	assert.Equal(t, "dentists", got["query"])
	assert.Equal(t, float64(40), got["limit"])
}

func TestHandleStartCrawl_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"success":false,"error":{"code":"ALREADY_RUNNING","message":"Scraping already in progress"}}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, http: srv.Client()}
	res := callTool(t, handleStartCrawl(c), map[string]any{"query": "q", "location": "l"})

	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "ALREADY_RUNNING")
}

func TestHandleStartCrawl_MissingLocation(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:0", http: http.DefaultClient}
	res := callTool(t, handleStartCrawl(c), map[string]any{"query": "q"})
	assert.True(t, res.IsError)
}

func TestHandleProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":12,"target":40,"status":"Scrolling... (2/20)","is_active":true,"download_ready":false}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, http: srv.Client()}
	out := text(t, callTool(t, handleProgress(c), nil))

	assert.Contains(t, out, "Collected: 12 / 40")
	assert.Contains(t, out, "Scrolling... (2/20)")
}
