package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/use-agent/leadscout/browser"
	"github.com/use-agent/leadscout/cache"
	"github.com/use-agent/leadscout/extractor"
	"github.com/use-agent/leadscout/models"
)

// Website fetch modes.
const (
	FetchBrowser = "browser"
	FetchHTTP    = "http"
	FetchAuto    = "auto"
)

// Ready markers for tabs.
const (
	detailReady  = "h1"
	websiteReady = "body"
)

var errNoFetcher = errors.New("no http fetcher configured")

// isBrowserCrash reports whether err means the browser itself is gone
// rather than one page failing.
func isBrowserCrash(err error) bool {
	var se *models.ScrapeError
	return errors.As(err, &se) && se.Code == models.ErrCodeBrowserCrash
}

// extract opens id in its own tab, parses the detail page and, when the
// record has gaps, fills them from the business website. Every tab it
// opens is closed before it returns.
func (s *Session) extract(ctx context.Context, id string) (models.BusinessRecord, error) {
	tab, err := s.browser.OpenTab(ctx, id, detailReady, s.cfg.DetailTimeout)
	if err != nil {
		return models.BusinessRecord{}, err
	}
	defer func() {
		if err := tab.Close(); err != nil {
			s.log.Debug("detail tab close failed", "error", err)
		}
	}()

	if !sleep(ctx, s.pacing()) {
		return models.BusinessRecord{}, ctx.Err()
	}

	raw, err := tab.Document(ctx)
	if err != nil {
		return models.BusinessRecord{}, err
	}

	rec, rep := extractor.ParseDetail(raw, id)
	if !rep.OK() {
		s.log.Debug("detail fields unavailable", "url", id, "error", rep.Err())
	}

	if !extractor.NeedsEnrichment(rec) {
		return rec, nil
	}

	s.setStatus(StatusWebsite)
	contacts, err := s.websiteContacts(ctx, rec.Website.String())
	if err != nil {
		s.log.Debug("website enrichment skipped", "website", rec.Website.String(), "error", err)
		return rec, nil
	}
	return extractor.Merge(rec, contacts), nil
}

// websiteContacts reads contacts from a business website, using the
// cache when one is configured.
func (s *Session) websiteContacts(ctx context.Context, site string) (extractor.Contacts, error) {
	u, err := url.Parse(site)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return extractor.Contacts{}, fmt.Errorf("unsupported website %q", site)
	}

	key := cache.Key(site)
	if s.deps.Websites != nil {
		if c, ok := s.deps.Websites.Get(key); ok {
			return c, nil
		}
	}

	raw, err := s.fetchWebsite(ctx, site)
	if err != nil {
		return extractor.Contacts{}, err
	}

	contacts, rep := extractor.ParseWebsite(raw)
	if !rep.OK() {
		s.log.Debug("website fields unavailable", "website", site, "error", rep.Err())
	}
	if s.deps.Websites != nil {
		s.deps.Websites.Set(key, contacts)
	}
	return contacts, nil
}

func (s *Session) fetchWebsite(ctx context.Context, site string) (string, error) {
	switch s.cfg.WebsiteFetchMode {
	case FetchHTTP:
		return s.fetchHTTP(ctx, site)
	case FetchAuto:
		return s.fetchAuto(ctx, site)
	default:
		return s.fetchTab(ctx, site)
	}
}

// fetchAuto tries plain HTTP first and falls back to a tab when the
// fetch fails or the page needs rendering. Hosts that needed a tab are
// remembered and go straight to one next time. A remembered host whose
// tab fails is forgotten and read over HTTP instead.
func (s *Session) fetchAuto(ctx context.Context, site string) (string, error) {
	hosts := s.deps.BrowserHosts
	if hosts != nil && hosts.NeedsBrowser(site) {
		body, err := s.fetchTab(ctx, site)
		if err == nil || isBrowserCrash(err) || ctx.Err() != nil {
			return body, err
		}
		hosts.Forget(site)
		s.log.Debug("remembered host failed in a tab, using http", "website", site, "error", err)
		return s.fetchHTTP(ctx, site)
	}

	body, err := s.fetchHTTP(ctx, site)
	if err == nil && !browser.NeedsBrowser([]byte(body)) {
		return body, nil
	}
	if err != nil {
		s.log.Debug("http fetch failed, using a tab", "website", site, "error", err)
	}

	body, err = s.fetchTab(ctx, site)
	if err == nil && hosts != nil {
		hosts.MarkBrowser(site)
	}
	return body, err
}

func (s *Session) fetchHTTP(ctx context.Context, site string) (string, error) {
	if s.deps.Fetcher == nil {
		return "", errNoFetcher
	}
	body, err := s.deps.Fetcher.Fetch(ctx, site)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *Session) fetchTab(ctx context.Context, site string) (string, error) {
	tab, err := s.browser.OpenTab(ctx, site, websiteReady, s.cfg.WebsiteTimeout)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := tab.Close(); err != nil {
			s.log.Debug("website tab close failed", "error", err)
		}
	}()

	if !sleep(ctx, s.cfg.WebsiteSettle) {
		return "", ctx.Err()
	}
	return tab.Document(ctx)
}
