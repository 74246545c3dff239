package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiClient talks to a running leadscout server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// apiError mirrors the error envelope of the leadscout API.
type apiError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// progressResponse mirrors GET /api/v1/crawl/progress.
type progressResponse struct {
	RunID         string `json:"run_id"`
	Query         string `json:"query"`
	Location      string `json:"location"`
	Count         int    `json:"count"`
	Target        int    `json:"target"`
	Status        string `json:"status"`
	IsActive      bool   `json:"is_active"`
	DownloadReady bool   `json:"download_ready"`
}

func main() {
	apiURL := os.Getenv("LEADSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	client := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("LEADSCOUT_API_KEY"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	s := server.NewMCPServer(
		"leadscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("start_crawl",
		mcp.WithDescription("Start collecting business listings from Google Maps for a search phrase and location. Only one crawl runs at a time; poll crawl_progress afterwards."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to search for, e.g. 'dentists'"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Where to search, e.g. 'Austin, TX'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of businesses to collect (20-1000, default 1000)"),
		),
	), handleStartCrawl(client))

	s.AddTool(mcp.NewTool("crawl_progress",
		mcp.WithDescription("Report the collected count, target, status message and whether the workbook is ready."),
	), handleProgress(client))

	s.AddTool(mcp.NewTool("crawl_results",
		mcp.WithDescription("Return the most recently collected businesses, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records (default 50)"),
		),
	), handleResults(client))

	s.AddTool(mcp.NewTool("stop_crawl",
		mcp.WithDescription("Stop the running crawl. Records collected so far are exported."),
	), handleStop(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request and returns the body of a 2xx response. Other
// statuses are turned into errors carrying the API's message.
func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(body, &e) == nil && e.Error != nil {
			return nil, fmt.Errorf("%s: %s", e.Error.Code, e.Error.Message)
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return body, nil
}

func handleStartCrawl(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		location, err := request.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError("location is required"), nil
		}

		payload := map[string]any{"query": query, "location": location}
		if limit := request.GetInt("limit", 0); limit > 0 {
			payload["limit"] = limit
		}

		body, err := c.do(ctx, http.MethodPost, "/api/v1/crawl/start", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp struct {
			RunID  string `json:"run_id"`
			Target int    `json:"target"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Crawl %s started for %q in %q (target %d).",
			resp.RunID, query, location, resp.Target)), nil
	}
}

func handleProgress(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := c.do(ctx, http.MethodGet, "/api/v1/crawl/progress", nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var p progressResponse
		if err := json.Unmarshal(body, &p); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Status: %s\n", p.Status)
		fmt.Fprintf(&sb, "Collected: %d / %d\n", p.Count, p.Target)
		fmt.Fprintf(&sb, "Active: %t\n", p.IsActive)
		fmt.Fprintf(&sb, "Workbook ready: %t", p.DownloadReady)
		if p.DownloadReady {
			fmt.Fprintf(&sb, " (%s/api/v1/crawl/download)", c.baseURL)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleResults(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/v1/crawl/results"
		if limit := request.GetInt("limit", 0); limit > 0 {
			path += "?limit=" + strconv.Itoa(limit)
		}

		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp struct {
			Total   int               `json:"total"`
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		pretty, err := json.MarshalIndent(resp.Results, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format results: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d records:\n%s", resp.Total, pretty)), nil
	}
}

func handleStop(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := c.do(ctx, http.MethodPost, "/api/v1/crawl/stop", nil); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Stop requested. Records collected so far will be exported."), nil
	}
}
