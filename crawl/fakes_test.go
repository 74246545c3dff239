package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/leadscout/checkpoint"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
)

var errCrash = errors.New("target closed")

// fakeEnv is the world every fakeBrowser launched by one test shares.
type fakeEnv struct {
	mu sync.Mutex

	// views[i] is the rendered feed after i scrolls.
	views    [][]string
	endAfter int // end marker shown once pos >= endAfter; <0 never
	pages    map[string]string
	failOpen map[string]bool

	crashOnHrefs int // error on this Hrefs call, 1-based; 0 never
	panicOnCrash bool
	launchErr    error

	pos        int
	launches   int
	hrefsCalls int
	scrolls    int
	opened     int
	closed     int
	visits     map[string]int
}

func newFakeEnv(views ...[]string) *fakeEnv {
	return &fakeEnv{
		views:    views,
		endAfter: -1,
		pages:    make(map[string]string),
		failOpen: make(map[string]bool),
		visits:   make(map[string]int),
	}
}

func (e *fakeEnv) launch(context.Context) (Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launches++
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	return &fakeBrowser{env: e}, nil
}

func (e *fakeEnv) visitCount(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visits[id]
}

type fakeBrowser struct {
	env *fakeEnv
}

func (b *fakeBrowser) Search(context.Context, string, string) error {
	b.env.mu.Lock()
	defer b.env.mu.Unlock()
	b.env.pos = 0
	return nil
}

func (b *fakeBrowser) Hrefs(context.Context, string) ([]string, error) {
	e := b.env
	e.mu.Lock()
	e.hrefsCalls++
	crash := e.crashOnHrefs > 0 && e.hrefsCalls == e.crashOnHrefs
	panicky := e.panicOnCrash
	var view []string
	if len(e.views) > 0 {
		view = e.views[min(e.pos, len(e.views)-1)]
	}
	e.mu.Unlock()

	if crash {
		if panicky {
			panic("renderer gone")
		}
		return nil, errCrash
	}
	return append([]string(nil), view...), nil
}

func (b *fakeBrowser) ScrollToBottom(context.Context, string) error {
	b.env.mu.Lock()
	defer b.env.mu.Unlock()
	b.env.pos++
	b.env.scrolls++
	return nil
}

func (b *fakeBrowser) PageDown(context.Context) error { return nil }

func (b *fakeBrowser) Document(context.Context) (string, error) {
	b.env.mu.Lock()
	defer b.env.mu.Unlock()
	if b.env.endAfter >= 0 && b.env.pos >= b.env.endAfter {
		return "<div>" + EndOfList + "</div>", nil
	}
	return "<div role='feed'></div>", nil
}

func (b *fakeBrowser) OpenTab(_ context.Context, url, _ string, _ time.Duration) (Tab, error) {
	e := b.env
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visits[url]++
	if e.failOpen[url] {
		return nil, models.NewScrapeError(models.ErrCodeNavigationTimeout, "navigation timed out", nil)
	}
	e.opened++
	return &fakeTab{env: e, html: e.pages[url]}, nil
}

func (b *fakeBrowser) Close() error { return nil }

type fakeTab struct {
	env  *fakeEnv
	html string
}

func (t *fakeTab) Document(context.Context) (string, error) { return t.html, nil }

func (t *fakeTab) Close() error {
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	t.env.closed++
	return nil
}

// fakeExporter records what it was asked to export and writes an empty file.
type fakeExporter struct {
	dir     string
	err     error
	mu      sync.Mutex
	records []models.BusinessRecord
	calls   int
}

func (x *fakeExporter) Export(_ context.Context, records []models.BusinessRecord) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls++
	if x.err != nil {
		return "", x.err
	}
	x.records = append([]models.BusinessRecord(nil), records...)
	path := filepath.Join(x.dir, fmt.Sprintf("export_%d.xlsx", x.calls))
	return path, os.WriteFile(path, nil, 0o644)
}

type fakeFetcher struct {
	mu    sync.Mutex
	body  map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b, ok := f.body[url]
	if !ok {
		return nil, errors.New("status 404")
	}
	return []byte(b), nil
}

func detailPage(name, email, website string, extra ...string) string {
	html := "<html><body><div role='main'>"
	if name != "" {
		html += "<h1>" + name + "</h1>"
	}
	if email != "" {
		html += `<button data-item-id="email" aria-label="Email: ` + email + `"></button>`
	}
	if website != "" {
		html += `<a data-item-id="authority" href="` + website + `">site</a>`
	}
	for _, e := range extra {
		html += e
	}
	return html + "</div></body></html>"
}

func testConfig() config.CrawlConfig {
	return config.CrawlConfig{
		NavigationTimeout: time.Second,
		MaxScrollRetries:  20,
		DetailTimeout:     time.Second,
		WebsiteTimeout:    time.Second,
		WebsiteFetchMode:  FetchBrowser,
	}
}

type harness struct {
	env      *fakeEnv
	exporter *fakeExporter
	store    *checkpoint.FileStore
	deps     Deps
}

func newHarness(t *testing.T, env *fakeEnv) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		env:      env,
		exporter: &fakeExporter{dir: dir},
		store:    checkpoint.NewFileStore(dir),
	}
	h.deps = Deps{
		Config:      testConfig(),
		Launch:      env.launch,
		Checkpoints: h.store,
		Exporter:    h.exporter,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h
}

// run starts a controller and waits for the run to exit.
func (h *harness) run(t *testing.T, query, location string, target int) (*Controller, Snapshot) {
	t.Helper()
	c := NewController(h.deps)
	_, err := c.Start(query, location, target)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	return c, c.Progress()
}

func names(records []models.BusinessRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name.String()
	}
	return out
}
