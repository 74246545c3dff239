package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/leadscout/models"
)

// Tab is an isolated tab opened from the primary tab.
type Tab struct {
	page   *rod.Page
	opener *rod.Page
	router *rod.HijackRouter
	url    string
}

// OpenTab opens a new tab, navigates to target and waits up to timeout for
// readySelector to render. On failure the tab is closed and a
// NAVIGATION_TIMEOUT error is returned.
//
// Lifecycle:
//
//  1. Create page      – stealth + headers installed before navigation
//  2. Hijack mount     – block heavy resources and trackers
//  3. Activate         – bring to front like a user-opened tab
//  4. Navigate + wait  – bounded by timeout and ctx
func (s *Session) OpenTab(ctx context.Context, target, readySelector string, timeout time.Duration) (*Tab, error) {
	// ── 1. Create page ───────────────────────────────────────────────
	page, err := s.newPage()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}
	t := &Tab{page: page, opener: s.page, url: target}

	// ── 2. Mount hijack router ───────────────────────────────────────
	t.router = setupHijack(page, s.cfg.BlockedResourceTypes, s.cfg.BlockTrackers)

	// ── 3. Activate ──────────────────────────────────────────────────
	if _, err := page.Activate(); err != nil {
		slog.Debug("tab activate failed", "url", target, "error", err)
	}

	// ── 4. Navigate and wait for the ready marker ────────────────────
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := page.Context(waitCtx)

	if err := p.Navigate(target); err != nil {
		t.Close()
		return nil, models.NewScrapeError(models.ErrCodeNavigationTimeout, "tab navigation failed: "+target, err)
	}
	if _, err := p.Element(readySelector); err != nil {
		t.Close()
		return nil, models.NewScrapeError(models.ErrCodeNavigationTimeout, "timed out waiting for "+readySelector, err)
	}
	return t, nil
}

// Document returns the rendered HTML of the tab.
func (t *Tab) Document(ctx context.Context) (string, error) {
	html, err := t.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read tab document")
	}
	return html, nil
}

// Close closes the tab and re-activates the tab it was opened from.
// Closing an already closed tab is not an error.
func (t *Tab) Close() error {
	if t == nil || t.page == nil {
		return nil
	}
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if err := t.page.Close(); err != nil {
		slog.Debug("tab already closed", "url", t.url, "error", err)
	}
	t.page = nil
	if t.opener != nil {
		if _, err := t.opener.Activate(); err != nil {
			slog.Debug("re-activate opener failed", "error", err)
		}
	}
	return nil
}
