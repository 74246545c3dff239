// Package webhook delivers run lifecycle events to an external endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// EventCrawlCompleted is sent once a run has exported its workbook.
const EventCrawlCompleted = "crawl.completed"

// SignatureHeader carries the HMAC of the body when a secret is configured.
const SignatureHeader = "X-Leadscout-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// CrawlCompleted is the Data of a crawl.completed event.
type CrawlCompleted struct {
	Query    string `json:"query"`
	Location string `json:"location"`
	Count    int    `json:"count"`
	Status   string `json:"status"`
	File     string `json:"file"`
}

// Notifier posts events to one endpoint.
type Notifier struct {
	URL    string
	Secret string
	Client *http.Client

	// Delays between attempts in DeliverAsync; the first entry is
	// usually zero.
	Delays []time.Duration
}

// New returns a Notifier for url, or nil when url is empty.
func New(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 10 * time.Second},
		Delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if a secret is set.
// Header: X-Leadscout-Signature: sha256=<hex>
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Leadscout-Webhook/1.0")
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.Secret, body))
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends event in the background, retrying per n.Delays.
// The returned channel is closed when delivery succeeds or gives up.
func (n *Notifier) DeliverAsync(event *Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for attempt, delay := range n.Delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.URL,
					"event", event.Type,
					"run_id", event.RunID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.URL,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.URL,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
	return done
}
