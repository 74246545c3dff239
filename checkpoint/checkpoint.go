// Package checkpoint persists in-progress crawl state so an interrupted run
// can resume without re-extracting identifiers it already handled.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/use-agent/leadscout/models"
)

// ErrCorrupt is returned by Load when a checkpoint file cannot be parsed.
var ErrCorrupt = errors.New("checkpoint: corrupt file")

// Checkpoint is the persisted subset of a crawl session.
type Checkpoint struct {
	Query        string                  `json:"query"`
	Location     string                  `json:"location"`
	ScrapedCount int                     `json:"scraped_count"`
	Results      []models.BusinessRecord `json:"results"`

	// Processed holds identifiers that were attempted but produced no
	// retained record. Older files omit it.
	Processed []string `json:"processed,omitempty"`
}

// Seen returns every identifier the checkpoint accounts for: retained
// records first, then attempted-but-dropped identifiers.
func (c *Checkpoint) Seen() map[string]struct{} {
	seen := make(map[string]struct{}, len(c.Results)+len(c.Processed))
	for _, r := range c.Results {
		if r.SourceURL != "" {
			seen[r.SourceURL] = struct{}{}
		}
	}
	for _, id := range c.Processed {
		seen[id] = struct{}{}
	}
	return seen
}

// Key normalizes a (query, location) pair into the checkpoint identity.
func Key(query, location string) string {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return norm(query) + "|" + norm(location)
}

// Matches reports whether the checkpoint belongs to (query, location).
func (c *Checkpoint) Matches(query, location string) bool {
	return Key(c.Query, c.Location) == Key(query, location)
}

// FileStore keeps one JSON file per (query, location) in Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns the file name a new checkpoint for (query, location) is
// written to. Case is preserved, so "Coffee Shops" in "New York" maps to
// recovery_Coffee_Shops_New_York.json.
func (s *FileStore) Path(query, location string) string {
	return filepath.Join(s.Dir, "recovery_"+sanitize(query)+"_"+sanitize(location)+".json")
}

// locate returns the existing file for (query, location), comparing names
// case-insensitively so a file written under another casing of the same
// intent is reused. It falls back to Path.
func (s *FileStore) locate(query, location string) string {
	want := s.Path(query, location)
	if _, err := os.Stat(want); err == nil {
		return want
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return want
	}
	base := filepath.Base(want)
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(e.Name(), base) {
			return filepath.Join(s.Dir, e.Name())
		}
	}
	return want
}

// Load reads the checkpoint for (query, location). It returns (nil, nil)
// when no file exists or the stored intent does not match. A parse error
// is reported as ErrCorrupt.
func (s *FileStore) Load(query, location string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.locate(query, location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !cp.Matches(query, location) {
		return nil, nil
	}
	return &cp, nil
}

// Save overwrites the checkpoint file. The write goes to a temporary file
// in the same directory and is renamed into place.
func (s *FileStore) Save(cp *Checkpoint) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	target := s.locate(cp.Query, cp.Location)
	tmp, err := os.CreateTemp(s.Dir, ".recovery-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint for (query, location). A missing file is
// not an error.
func (s *FileStore) Delete(query, location string) error {
	err := os.Remove(s.locate(query, location))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// sanitize turns whitespace runs into "_" and drops characters that are
// unsafe in file names.
func sanitize(s string) string {
	s = strings.Join(strings.Fields(s), "_")
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return -1
		}
		return r
	}, s)
}
