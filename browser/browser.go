// Package browser wraps a single stealth Chromium instance driven by rod:
// one primary tab holding the results feed plus short-lived isolated tabs
// for detail pages and business websites.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
	"github.com/ysmood/gson"
)

// FeedSelector is the scrollable results list.
const FeedSelector = `div[role='feed']`

// ErrElementNotFound is returned when a required element is not rendered.
var ErrElementNotFound = errors.New("browser: element not found")

// process is the launched Chromium: Kill stops it, Cleanup waits for exit
// and removes its profile dir. *launcher.Launcher satisfies it.
type process interface {
	Kill()
	Cleanup()
}

// Session owns one browser process and its primary tab.
// It is not safe for concurrent use; the crawl worker is its only caller.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	proc    process
	cfg     config.BrowserConfig
}

// Launch starts Chromium with automation flags removed, opens the primary
// tab and installs stealth scripts on it. The process lives until Close or
// until ctx is done.
func Launch(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	ua := pickUserAgent(cfg.UserAgents)

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	if ua != "" {
		l.Set(flags.Flag("user-agent"), ua)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "userAgent", ua)

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s := &Session{browser: b, proc: l, cfg: cfg}
	page, err := s.newPage()
	if err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open primary tab", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080}); err != nil {
		slog.Debug("viewport override failed", "error", err)
	}
	s.page = page

	if ctx.Err() != nil {
		_ = s.Close()
		return nil, ctx.Err()
	}
	return s, nil
}

// newPage opens a blank tab with stealth scripts and extra headers.
func (s *Session) newPage() (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if s.cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": s.cfg.AcceptLanguage}),
		}.Call(page)
	}
	return page, nil
}

// SearchURL returns the results URL for "<query> in <location>".
func SearchURL(pattern, query, location string) string {
	return fmt.Sprintf(pattern, url.PathEscape(query+" in "+location))
}

// Search navigates the primary tab to the results for query and location
// and waits for either the feed or a single place heading. The wait is
// bounded by ctx.
func (s *Session) Search(ctx context.Context, query, location string) error {
	p := s.page.Context(ctx)
	target := SearchURL(s.cfg.SearchURL, query, location)

	if err := p.Navigate(target); err != nil {
		return categorizeError(err, "search navigation failed")
	}
	if _, err := p.Race().Element(FeedSelector).Element("h1").Do(); err != nil {
		return categorizeError(err, "search results did not render")
	}
	slog.Debug("search results rendered", "url", target)
	return nil
}

// Document returns the rendered HTML of the primary tab.
func (s *Session) Document(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read document")
	}
	return html, nil
}

// Hrefs returns the resolved href of every element matching selector, in
// document order.
func (s *Session) Hrefs(ctx context.Context, selector string) ([]string, error) {
	res, err := s.page.Context(ctx).Eval(`(sel) => Array.from(document.querySelectorAll(sel), a => a.href || "")`, selector)
	if err != nil {
		return nil, categorizeError(err, "failed to read links")
	}
	items := res.Value.Arr()
	out := make([]string, 0, len(items))
	for _, v := range items {
		if href := v.Str(); href != "" {
			out = append(out, href)
		}
	}
	return out, nil
}

// ScrollToBottom scrolls the first element matching selector to its end.
func (s *Session) ScrollToBottom(ctx context.Context, selector string) error {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return categorizeError(err, "failed to query scroll container")
	}
	if len(els) == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	if _, err := els[0].Eval(`() => { this.scrollTop = this.scrollHeight }`); err != nil {
		return fmt.Errorf("scroll %s: %w", selector, err)
	}
	return nil
}

// PageDown presses the Page Down key on the primary tab.
func (s *Session) PageDown(ctx context.Context) error {
	p := s.page.Context(ctx)
	return p.Keyboard.Type(input.PageDown)
}

// Close closes the browser, then kills its process and removes the
// profile dir. Safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.browser != nil {
		if err = s.browser.Close(); err != nil {
			slog.Debug("browser close", "error", err)
		}
	}
	s.browser, s.page = nil, nil
	if s.proc != nil {
		s.proc.Kill()
		s.proc.Cleanup()
		s.proc = nil
	}
	return err
}

func pickUserAgent(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
