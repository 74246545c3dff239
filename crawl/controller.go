// Package crawl runs the search-scroll-extract loop and exposes it
// through a single-flight Controller.
package crawl

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/use-agent/leadscout/models"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = models.NewScrapeError(models.ErrCodeAlreadyRunning, "Scraping already in progress", nil)

// Controller owns at most one run at a time. Readers never block on the
// worker: they load the latest published Snapshot.
type Controller struct {
	deps Deps

	mu     sync.Mutex // serializes Start, Stop and Reset
	cancel context.CancelFunc
	done   chan struct{}

	// deliveries holds completion webhooks that may still be in flight
	// after their run exited.
	deliveryMu sync.Mutex
	deliveries []<-chan struct{}

	snap atomic.Pointer[Snapshot]
}

// NewController returns an idle controller.
func NewController(deps Deps) *Controller {
	c := &Controller{deps: deps}
	c.snap.Store(idleSnapshot())
	return c
}

// Start launches a run for (query, location) collecting up to target
// records, and returns its run ID.
func (c *Controller) Start(query, location string, target int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running() {
		return "", ErrAlreadyRunning
	}
	if target <= 0 {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "target must be positive", nil)
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	sess := newSession(c.deps, runID, query, location, target, c.snap.Store)
	c.snap.Store(sess.snapshot(true))

	go func() {
		defer close(done)
		defer cancel()
		if delivered := sess.run(ctx); delivered != nil {
			c.track(delivered)
		}
	}()

	c.deps.Logger.Info("run started", "run_id", runID, "query", query, "location", location, "target", target)
	return runID, nil
}

// Stop asks the active run to finish and returns without waiting. It
// reports whether a run was active.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running() {
		return false
	}
	c.cancel()

	for {
		old := c.snap.Load()
		if !old.Active {
			break
		}
		next := *old
		next.Status = StatusStopping
		if c.snap.CompareAndSwap(old, &next) {
			break
		}
	}
	return true
}

// Reset stops any active run, waits for its worker to exit and clears
// the published state. Checkpoint files are kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		c.cancel()
		<-c.done
	}
	c.cancel, c.done = nil, nil
	c.snap.Store(idleSnapshot())
}

// Wait blocks until the current run, if any, has exited and its
// completion webhook has been delivered, or until ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.deliveryMu.Lock()
	pending := append([]<-chan struct{}(nil), c.deliveries...)
	c.deliveryMu.Unlock()

	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// track records an in-flight delivery and drops finished ones.
func (c *Controller) track(delivered <-chan struct{}) {
	c.deliveryMu.Lock()
	defer c.deliveryMu.Unlock()

	live := c.deliveries[:0]
	for _, ch := range c.deliveries {
		select {
		case <-ch:
		default:
			live = append(live, ch)
		}
	}
	c.deliveries = append(live, delivered)
}

// Progress returns the latest snapshot.
func (c *Controller) Progress() Snapshot {
	return *c.snap.Load()
}

// Active reports whether a run is in progress.
func (c *Controller) Active() bool {
	return c.snap.Load().Active
}

// Results returns up to limit records, newest first. A limit of zero or
// less returns every record.
func (c *Controller) Results(limit int) []models.BusinessRecord {
	all := c.snap.Load().Results
	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.BusinessRecord, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out
}

// DownloadPath returns the exported workbook of the last finished run
// while it still exists on disk.
func (c *Controller) DownloadPath() (string, bool) {
	snap := c.snap.Load()
	if snap.Active || snap.DownloadPath == "" {
		return "", false
	}
	if _, err := os.Stat(snap.DownloadPath); err != nil {
		return "", false
	}
	return snap.DownloadPath, true
}

// running must be called with mu held.
func (c *Controller) running() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// IsAlreadyRunning reports whether err came from a rejected Start.
func IsAlreadyRunning(err error) bool {
	var se *models.ScrapeError
	return errors.As(err, &se) && se.Code == models.ErrCodeAlreadyRunning
}
