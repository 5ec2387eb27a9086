// Package store provides SQLite-backed persistence for collector run
// metadata and periodic filter-metrics snapshots, adapted from the
// teacher's telemetry collector idiom onto a new schema.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// MetricsStore persists run records and filter-metric snapshots to a
// SQLite database.
type MetricsStore struct {
	db *sql.DB
}

// Run describes a single invocation of the collector CLI.
type Run struct {
	ID        string
	Subcommand string
	StartedAt time.Time
	Flags     string
}

// FilterMetricSnapshot is a point-in-time reading of the global SSL or
// HTTP filter counters.
type FilterMetricSnapshot struct {
	RunID     string
	Kind      string // "ssl" or "http"
	Total     uint64
	Filtered  uint64
	Timestamp time.Time
}

// Summary aggregates filter-metric snapshots across all runs.
type Summary struct {
	TotalRuns           int
	TotalSSLEvents      uint64
	TotalSSLFiltered    uint64
	TotalHTTPEvents     uint64
	TotalHTTPFiltered   uint64
}

// Open opens (or creates) the SQLite database at dbPath and ensures
// its schema exists.
func Open(dbPath string) (*MetricsStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store at %q: %w", dbPath, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		subcommand TEXT,
		started_at DATETIME,
		flags TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS filter_metric_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		kind TEXT,
		total INTEGER,
		filtered INTEGER,
		recorded_at DATETIME
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating filter_metric_snapshots table: %w", err)
	}

	return &MetricsStore{db: db}, nil
}

// Close releases the database connection.
func (s *MetricsStore) Close() error {
	return s.db.Close()
}

// RecordRun inserts a new run row and returns its generated ID.
func (s *MetricsStore) RecordRun(subcommand, flags string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, subcommand, started_at, flags) VALUES (?, ?, ?, ?)`,
		id, subcommand, time.Now(), flags,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// SnapshotFilterMetrics records a point-in-time filter-counter reading
// for a run.
func (s *MetricsStore) SnapshotFilterMetrics(runID, kind string, total, filtered uint64) error {
	_, err := s.db.Exec(
		`INSERT INTO filter_metric_snapshots (run_id, kind, total, filtered, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, kind, total, filtered, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("recording filter metric snapshot: %w", err)
	}
	return nil
}

// Summary aggregates run counts and the sum of all recorded
// filter-metric snapshots across all recorded runs.
func (s *MetricsStore) Summary() (*Summary, error) {
	summary := &Summary{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&summary.TotalRuns); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(total), 0), COALESCE(SUM(filtered), 0)
		 FROM filter_metric_snapshots WHERE kind = 'ssl'`,
	).Scan(&summary.TotalSSLEvents, &summary.TotalSSLFiltered); err != nil {
		return nil, fmt.Errorf("summing ssl snapshots: %w", err)
	}

	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(total), 0), COALESCE(SUM(filtered), 0)
		 FROM filter_metric_snapshots WHERE kind = 'http'`,
	).Scan(&summary.TotalHTTPEvents, &summary.TotalHTTPFiltered); err != nil {
		return nil, fmt.Errorf("summing http snapshots: %w", err)
	}

	return summary, nil
}
