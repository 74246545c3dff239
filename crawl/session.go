package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/use-agent/leadscout/cache"
	"github.com/use-agent/leadscout/checkpoint"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
	"github.com/use-agent/leadscout/webhook"
)

// CheckpointStore persists run progress between attempts.
type CheckpointStore interface {
	Load(query, location string) (*checkpoint.Checkpoint, error)
	Save(cp *checkpoint.Checkpoint) error
	Delete(query, location string) error
}

// Exporter writes the final records and returns the file path.
type Exporter interface {
	Export(ctx context.Context, records []models.BusinessRecord) (string, error)
}

// Archiver stores the records of finished runs.
type Archiver interface {
	Archive(ctx context.Context, runID, query, location string, records []models.BusinessRecord) (int, error)
}

// Notifier announces finished runs.
type Notifier interface {
	DeliverAsync(event *webhook.Event) <-chan struct{}
}

// Deps are the collaborators shared by every run. Archive, Notifier,
// Websites, Fetcher and BrowserHosts are optional.
type Deps struct {
	Config       config.CrawlConfig
	Launch       Launcher
	Checkpoints  CheckpointStore
	Exporter     Exporter
	Archive      Archiver
	Notifier     Notifier
	Websites     *cache.Cache
	Fetcher      WebsiteFetcher
	BrowserHosts *HostMemory
	Logger       *slog.Logger
}

// errBrowserPanic wraps a panic recovered inside an iteration.
var errBrowserPanic = errors.New("browser iteration panicked")

// Session is one run. All fields are owned by the worker goroutine;
// observers only see published snapshots.
type Session struct {
	deps    Deps
	cfg     config.CrawlConfig
	pager   *Paginator
	log     *slog.Logger
	publish func(*Snapshot)

	runID    string
	query    string
	location string
	target   int
	started  time.Time

	status    string
	results   []models.BusinessRecord
	processed map[string]struct{}
	dropped   []string
	download  string

	browser  Browser
	launches int
	lastErr  error
	ctx      context.Context

	exportErr *models.ScrapeError
	delivered <-chan struct{}
}

func newSession(deps Deps, runID, query, location string, target int, publish func(*Snapshot)) *Session {
	log := deps.Logger.With("run_id", runID)
	return &Session{
		deps:      deps,
		cfg:       deps.Config,
		pager:     NewPaginator(log),
		log:       log,
		publish:   publish,
		runID:     runID,
		query:     query,
		location:  location,
		target:    target,
		started:   time.Now(),
		status:    StatusStarting,
		processed: make(map[string]struct{}),
	}
}

// snapshot captures the current state. Results is re-sliced to its
// length so later appends never show through.
func (s *Session) snapshot(active bool) *Snapshot {
	n := len(s.results)
	snap := &Snapshot{
		RunID:        s.runID,
		Query:        s.query,
		Location:     s.location,
		Count:        n,
		Target:       s.target,
		Status:       s.status,
		Active:       active,
		DownloadPath: s.download,
		Results:      s.results[:n:n],
		StartedAt:    s.started,
		Err:          s.exportErr,
	}
	if active && s.ctx != nil && s.ctx.Err() != nil {
		snap.Status = StatusStopping
	}
	if !active {
		snap.FinishedAt = time.Now()
	}
	return snap
}

func (s *Session) setStatus(status string) {
	s.status = status
	s.publish(s.snapshot(true))
}

// run drives the crawl until the target is reached, the feed runs dry,
// the browser budget is spent, or ctx is cancelled. The returned channel,
// when non-nil, closes once the completion webhook has been delivered or
// given up on.
func (s *Session) run(ctx context.Context) <-chan struct{} {
	s.ctx = ctx
	defer s.closeBrowser()

	s.resume()

	stall := 0
	reason := ""
	for len(s.results) < s.target {
		if ctx.Err() != nil {
			reason = StatusStopped
			break
		}

		if s.browser == nil {
			if limit := s.cfg.MaxBrowserRestarts; limit > 0 && s.launches > limit {
				reason = fmt.Sprintf("Browser unavailable: %v", s.lastErr)
				break
			}
			if err := s.openBrowser(ctx); err != nil {
				s.lastErr = err
				s.log.Warn("browser setup failed", "attempt", s.launches, "error", err)
				s.setStatus(fmt.Sprintf("Driver setup failed: %v", err))
				s.closeBrowser()
				if !sleep(ctx, s.cfg.RetryBackoff) {
					reason = StatusStopped
					break
				}
				continue
			}
		}

		done, why, err := s.iterate(ctx, &stall)
		if err != nil {
			if ctx.Err() != nil {
				reason = StatusStopped
				break
			}
			s.lastErr = err
			s.log.Warn("browser failure, restarting", "error", err)
			s.closeBrowser()
			if !sleep(ctx, s.cfg.RetryBackoff) {
				reason = StatusStopped
				break
			}
			continue
		}
		if done {
			reason = why
			break
		}
	}
	if reason == "" {
		reason = StatusComplete
	}

	s.finish(reason)
	return s.delivered
}

// resume loads a matching checkpoint. A missing or unreadable file means
// a cold start.
func (s *Session) resume() {
	cp, err := s.deps.Checkpoints.Load(s.query, s.location)
	if err != nil {
		s.log.Warn("ignoring checkpoint", "error", err)
		return
	}
	if cp == nil {
		return
	}

	for _, rec := range cp.Results {
		if rec.Retainable() {
			s.results = append(s.results, rec)
		}
	}
	s.processed = cp.Seen()
	s.dropped = append(s.dropped, cp.Processed...)

	s.log.Info("resumed from checkpoint", "records", len(s.results), "processed", len(s.processed))
	s.setStatus(fmt.Sprintf("Resumed from recovery: %d items loaded.", len(s.results)))
}

func (s *Session) openBrowser(ctx context.Context) error {
	s.launches++
	b, err := s.deps.Launch(ctx)
	if err != nil {
		return err
	}
	s.browser = b

	s.setStatus(fmt.Sprintf("Searching: %s in %s...", s.query, s.location))
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	err = b.Search(navCtx, s.query, s.location)
	cancel()
	if err != nil {
		return err
	}
	if !sleep(ctx, s.cfg.SettleDelay) {
		return ctx.Err()
	}
	if len(s.processed) > 0 {
		s.setStatus(StatusRestoring)
	}
	return nil
}

func (s *Session) closeBrowser() {
	if s.browser == nil {
		return
	}
	if err := s.browser.Close(); err != nil {
		s.log.Debug("browser close failed", "error", err)
	}
	s.browser = nil
}

// iterate processes one feed view. It reports done with a terminal
// status, or an error when the browser must be recreated.
func (s *Session) iterate(ctx context.Context, stall *int) (done bool, status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errBrowserPanic, r)
		}
	}()

	ids, err := s.pager.CollectNew(ctx, s.browser, s.processed)
	if err != nil {
		return false, "", err
	}

	if len(ids) > 0 {
		*stall = 0
		for _, id := range ids {
			if len(s.results) >= s.target {
				return false, "", nil
			}
			if ctx.Err() != nil {
				return true, StatusStopped, nil
			}
			if _, dup := s.processed[id]; dup {
				continue
			}

			s.setStatus(fmt.Sprintf("Extracting [%d/%d]: ...", len(s.results)+1, s.target))
			rec, xerr := s.extract(ctx, id)
			if ctx.Err() != nil {
				// Left unprocessed so a resumed run tries it again.
				return true, StatusStopped, nil
			}
			if isBrowserCrash(xerr) {
				// Left unprocessed; the restarted browser retries it.
				return false, "", xerr
			}
			if xerr != nil {
				s.log.Warn("extraction failed", "url", id, "error", xerr)
			}
			s.markProcessed(id, rec, xerr == nil)
		}
		return false, "", nil
	}

	*stall++
	s.setStatus(fmt.Sprintf("Scrolling... (%d/%d)", *stall, s.cfg.MaxScrollRetries))
	s.pager.Scroll(ctx, s.browser)

	doc, err := s.browser.Document(ctx)
	if err != nil {
		return false, "", err
	}
	if IsEndOfList(doc) {
		return true, StatusEndOfList, nil
	}
	if *stall >= s.cfg.MaxScrollRetries {
		return true, StatusStalled, nil
	}
	if !sleep(ctx, s.cfg.ScrollPause) {
		return true, StatusStopped, nil
	}
	return false, "", nil
}

// markProcessed records an attempted identifier and checkpoints.
func (s *Session) markProcessed(id string, rec models.BusinessRecord, ok bool) {
	s.processed[id] = struct{}{}
	if ok && rec.Retainable() {
		s.results = append(s.results, rec)
		s.log.Info("record extracted", "name", rec.Name.String(), "count", len(s.results))
	} else {
		s.dropped = append(s.dropped, id)
	}
	s.save()
	s.publish(s.snapshot(true))
}

func (s *Session) save() {
	cp := &checkpoint.Checkpoint{
		Query:        s.query,
		Location:     s.location,
		ScrapedCount: len(s.results),
		Results:      s.results,
		Processed:    s.dropped,
	}
	if err := s.deps.Checkpoints.Save(cp); err != nil {
		s.log.Warn("checkpoint save failed", "error", err)
	}
}

// finish exports, cleans up and publishes the terminal snapshot.
func (s *Session) finish(reason string) {
	defer func() { s.publish(s.snapshot(false)) }()

	if len(s.results) == 0 {
		s.status = reason
		s.log.Info("run finished without records", "status", reason)
		return
	}

	s.status = StatusExporting
	s.publish(s.snapshot(true))

	// The run context may already be cancelled by Stop.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	path, err := s.deps.Exporter.Export(ctx, s.results)
	if err != nil {
		s.exportErr = models.NewScrapeError(models.ErrCodeExport, "export failed", err)
		s.status = fmt.Sprintf("Export failed: %v", err)
		s.log.Error("export failed", "error", err)
		return
	}
	s.download = path
	s.status = reason

	if err := s.deps.Checkpoints.Delete(s.query, s.location); err != nil {
		s.log.Warn("checkpoint delete failed", "error", err)
	}

	if s.deps.Archive != nil {
		n, err := s.deps.Archive.Archive(ctx, s.runID, s.query, s.location, s.results)
		if err != nil {
			s.log.Warn("archive failed", "error", err)
		} else {
			s.log.Info("run archived", "inserted", n)
		}
	}

	if s.deps.Notifier != nil {
		s.delivered = s.deps.Notifier.DeliverAsync(&webhook.Event{
			Type:      webhook.EventCrawlCompleted,
			RunID:     s.runID,
			Timestamp: time.Now().Unix(),
			Data: webhook.CrawlCompleted{
				Query:    s.query,
				Location: s.location,
				Count:    len(s.results),
				Status:   reason,
				File:     path,
			},
		})
	}

	s.log.Info("run finished", "status", reason, "records", len(s.results), "file", path)
}

// pacing returns a delay drawn uniformly from [MinDelay, MaxDelay].
func (s *Session) pacing() time.Duration {
	lo, hi := s.cfg.MinDelay, s.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}

// sleep waits for d or until ctx is done. It reports whether the wait
// completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
