package crawl

import (
	"time"

	"github.com/use-agent/leadscout/models"
)

// Status messages shown to clients.
const (
	StatusIdle      = "Idle"
	StatusStarting  = "Starting..."
	StatusStopping  = "Stopping..."
	StatusRestoring = "Restoring list position..."
	StatusExporting = "Exporting final data..."
	StatusWebsite   = "Extracting data from website..."
	StatusComplete  = "Complete"
	StatusEndOfList = "End of list reached."
	StatusStalled   = "No new items found for too long. Stopping."
	StatusStopped   = "Stopped."
)

// Snapshot is an immutable view of a run. Results is shared with the
// worker and must not be modified.
type Snapshot struct {
	RunID        string
	Query        string
	Location     string
	Count        int
	Target       int
	Status       string
	Active       bool
	DownloadPath string
	Results      []models.BusinessRecord
	StartedAt    time.Time
	FinishedAt   time.Time
	Err          *models.ScrapeError // set when the final export failed
}

func idleSnapshot() *Snapshot {
	return &Snapshot{Status: StatusIdle}
}
