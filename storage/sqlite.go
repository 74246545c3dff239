// Package storage archives completed runs in SQLite so results survive
// after the workbook has been downloaded.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/use-agent/leadscout/models"
)

// Store is a SQLite-backed archive of business records.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (or creates) the archive at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// Optimize for write throughput
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		query TEXT NOT NULL,
		location TEXT NOT NULL,
		source_url TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		website TEXT,
		address TEXT,
		category TEXT,
		rating TEXT,
		reviews TEXT,
		hours TEXT,
		facebook TEXT,
		instagram TEXT,
		twitter TEXT,
		linkedin TEXT,
		youtube TEXT,
		tiktok TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_url, query, location)
	);
	CREATE INDEX IF NOT EXISTS idx_businesses_query ON businesses(query, location);
	CREATE INDEX IF NOT EXISTS idx_businesses_run ON businesses(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Archive inserts records for one run. Records already archived for the
// same (query, location) are skipped. It returns the number inserted.
func (s *Store) Archive(ctx context.Context, runID, query, location string, records []models.BusinessRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO businesses
		(run_id, query, location, source_url, name, phone, email, website, address,
		 category, rating, reviews, hours,
		 facebook, instagram, twitter, linkedin, youtube, tiktok)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		if !r.Retainable() {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			runID, query, location, r.SourceURL, r.Name.String(),
			nullable(r.Phone), nullable(r.Email), nullable(r.Website), nullable(r.Address),
			nullable(r.Category), nullable(r.Rating), nullable(r.Reviews), nullable(r.Hours),
			nullable(r.Social(models.Facebook)), nullable(r.Social(models.Instagram)),
			nullable(r.Social(models.Twitter)), nullable(r.Social(models.LinkedIn)),
			nullable(r.Social(models.YouTube)), nullable(r.Social(models.TikTok)),
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting %s: %w", r.SourceURL, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// Records returns archived records for (query, location) in insertion order.
func (s *Store) Records(ctx context.Context, query, location string) ([]models.BusinessRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_url, name, phone, email, website, address, category, rating, reviews, hours,
		       facebook, instagram, twitter, linkedin, youtube, tiktok
		FROM businesses WHERE query = ? AND location = ? ORDER BY id`, query, location)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []models.BusinessRecord
	for rows.Next() {
		var (
			sourceURL, name                                    string
			phone, email, website, address, category           sql.NullString
			rating, reviews, hours                             sql.NullString
			facebook, instagram, twitter, linkedin, yt, tiktok sql.NullString
		)
		if err := rows.Scan(&sourceURL, &name, &phone, &email, &website, &address, &category,
			&rating, &reviews, &hours, &facebook, &instagram, &twitter, &linkedin, &yt, &tiktok); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r := models.NewBusinessRecord(sourceURL)
		r.Name = models.Known(name)
		r.Phone = field(phone)
		r.Email = field(email)
		r.Website = field(website)
		r.Address = field(address)
		r.Category = field(category)
		r.Rating = field(rating)
		r.Reviews = field(reviews)
		r.Hours = field(hours)
		r.SetSocial(models.Facebook, field(facebook))
		r.SetSocial(models.Instagram, field(instagram))
		r.SetSocial(models.Twitter, field(twitter))
		r.SetSocial(models.LinkedIn, field(linkedin))
		r.SetSocial(models.YouTube, field(yt))
		r.SetSocial(models.TikTok, field(tiktok))
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of archived records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM businesses").Scan(&count)
	return count, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(f models.Field) sql.NullString {
	v, ok := f.Get()
	return sql.NullString{String: v, Valid: ok}
}

func field(ns sql.NullString) models.Field {
	if !ns.Valid {
		return models.Unknown
	}
	return models.Known(ns.String)
}
