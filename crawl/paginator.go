package crawl

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/leadscout/browser"
)

// Feed markers.
const (
	ItemSelector = `a[href*="/maps/place/"]`
	EndOfList    = "You've reached the end of the list"
)

// Paginator discovers item links in the results feed and advances it.
type Paginator struct {
	ItemSelector string
	FeedSelector string
	log          *slog.Logger
}

// NewPaginator returns a paginator for the results feed.
func NewPaginator(log *slog.Logger) *Paginator {
	return &Paginator{ItemSelector: ItemSelector, FeedSelector: browser.FeedSelector, log: log}
}

// CollectNew returns the rendered item links not in seen, in document
// order. Duplicates inside one view are kept.
func (p *Paginator) CollectNew(ctx context.Context, page Page, seen map[string]struct{}) ([]string, error) {
	hrefs, err := page.Hrefs(ctx, p.ItemSelector)
	if err != nil {
		return nil, err
	}
	var fresh []string
	for _, h := range hrefs {
		if _, ok := seen[h]; !ok {
			fresh = append(fresh, h)
		}
	}
	return fresh, nil
}

// Scroll moves the feed to its bottom, falling back to a Page Down key
// press. Failures are logged and swallowed.
func (p *Paginator) Scroll(ctx context.Context, page Page) {
	err := page.ScrollToBottom(ctx, p.FeedSelector)
	if err == nil {
		return
	}
	p.log.Debug("feed scroll failed, pressing page down", "error", err)
	if err := page.PageDown(ctx); err != nil {
		p.log.Debug("page down failed", "error", err)
	}
}

// IsEndOfList reports whether the feed says it has no more results.
func IsEndOfList(doc string) bool {
	return strings.Contains(doc, EndOfList)
}
