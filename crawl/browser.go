package crawl

import (
	"context"
	"time"

	"github.com/use-agent/leadscout/browser"
	"github.com/use-agent/leadscout/config"
)

// Tab is an isolated tab opened for one detail page or website.
type Tab interface {
	Document(ctx context.Context) (string, error)
	Close() error
}

// Page is the part of the primary tab the paginator needs.
type Page interface {
	Hrefs(ctx context.Context, selector string) ([]string, error)
	ScrollToBottom(ctx context.Context, selector string) error
	PageDown(ctx context.Context) error
}

// Browser is the browser resource owned by one run's worker.
type Browser interface {
	Page
	Search(ctx context.Context, query, location string) error
	Document(ctx context.Context) (string, error)
	OpenTab(ctx context.Context, url, readySelector string, timeout time.Duration) (Tab, error)
	Close() error
}

// Launcher creates a fresh Browser. It is called again after every
// browser failure.
type Launcher func(ctx context.Context) (Browser, error)

// WebsiteFetcher reads a business website without a browser.
type WebsiteFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RodLauncher launches stealth Chromium sessions.
func RodLauncher(cfg config.BrowserConfig) Launcher {
	return func(ctx context.Context) (Browser, error) {
		s, err := browser.Launch(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return rodSession{s}, nil
	}
}

// rodSession narrows OpenTab's concrete return type to Tab.
type rodSession struct {
	*browser.Session
}

func (r rodSession) OpenTab(ctx context.Context, url, readySelector string, timeout time.Duration) (Tab, error) {
	t, err := r.Session.OpenTab(ctx, url, readySelector, timeout)
	if err != nil {
		return nil, err
	}
	return t, nil
}
