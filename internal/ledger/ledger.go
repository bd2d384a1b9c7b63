// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ledger keeps an insert-only history of runs and per-file outcomes
// in SQLite. Matched text is never stored, only fingerprints.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"shroud/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	roots       TEXT NOT NULL,
	mode        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_totals (
	run_id      TEXT PRIMARY KEY REFERENCES runs(run_id),
	finished_at INTEGER NOT NULL,
	files       INTEGER NOT NULL,
	redacted    INTEGER NOT NULL,
	flagged     INTEGER NOT NULL,
	clean       INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	confirmed   INTEGER NOT NULL,
	rejected    INTEGER NOT NULL,
	fail_open   INTEGER NOT NULL,
	interrupted INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS file_results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(run_id),
	path         TEXT NOT NULL,
	type         TEXT NOT NULL,
	status       TEXT NOT NULL,
	candidates   INTEGER NOT NULL,
	confirmed    INTEGER NOT NULL,
	rejected     INTEGER NOT NULL,
	fail_open    INTEGER NOT NULL,
	output_path  TEXT,
	fault_kind   TEXT,
	fingerprints TEXT,
	duration_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_results_run ON file_results(run_id);
`

// ErrUnknownRun is returned when appending to a run that was never begun
var ErrUnknownRun = errors.New("unknown run")

// Store is the SQLite-backed ledger
type Store struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// Open creates or opens the ledger database at path
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// BeginRun records the start of a run
func (s *Store) BeginRun(ctx context.Context, sum *report.Summary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, roots, mode) VALUES (?, ?, ?, ?)`,
		sum.RunID, sum.StartedAt.UnixMilli(), strings.Join(sum.Roots, "\n"), sum.Mode)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Append records one file result
func (s *Store) Append(ctx context.Context, runID string, r report.FileResult) error {
	var fingerprints []string
	for _, f := range r.Findings {
		fingerprints = append(fingerprints, f.Category+":"+f.Fingerprint)
	}
	var faultKind sql.NullString
	if r.Fault != nil {
		faultKind = sql.NullString{String: r.FaultKind().String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_results
			(run_id, path, type, status, candidates, confirmed, rejected, fail_open, output_path, fault_kind, fingerprints, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Target.Path, r.Target.Type.String(), string(r.Status),
		r.Candidates, r.Confirmed, r.Rejected, r.FailOpen,
		r.OutputPath, faultKind, strings.Join(fingerprints, ","), r.Duration.Milliseconds())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w %s", ErrUnknownRun, runID)
		}
		return fmt.Errorf("failed to record file result: %w", err)
	}
	return nil
}

// FinishRun records the totals of a run
func (s *Store) FinishRun(ctx context.Context, sum *report.Summary) error {
	finished := sum.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_totals
			(run_id, finished_at, files, redacted, flagged, clean, skipped, failed, confirmed, rejected, fail_open, interrupted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, finished.UnixMilli(), sum.Files, sum.Redacted, sum.Flagged, sum.Clean,
		sum.Skipped, sum.Failed, sum.Confirmed, sum.Rejected, sum.FailOpen, sum.Interrupted)
	if err != nil {
		return fmt.Errorf("failed to record run totals: %w", err)
	}
	return nil
}

// Run is one row of history
type Run struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time // zero when the run never finished
	Roots      []string
	Mode       string
	Files      int
	Redacted   int
	Flagged    int
	Skipped    int
	Failed     int
	Confirmed  int
}

// Recent returns up to n runs, newest first
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.started_at, r.roots, r.mode,
		       t.finished_at, t.files, t.redacted, t.flagged, t.skipped, t.failed, t.confirmed
		FROM runs r LEFT JOIN run_totals t ON t.run_id = r.run_id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                                                  Run
			started                                              int64
			roots                                                string
			finished                                             sql.NullInt64
			files, redacted, flagged, skipped, failed, confirmed sql.NullInt64
		)
		if err := rows.Scan(&run.RunID, &started, &roots, &run.Mode,
			&finished, &files, &redacted, &flagged, &skipped, &failed, &confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			run.FinishedAt = time.UnixMilli(finished.Int64)
		}
		if roots != "" {
			run.Roots = strings.Split(roots, "\n")
		}
		run.Files = int(files.Int64)
		run.Redacted = int(redacted.Int64)
		run.Flagged = int(flagged.Int64)
		run.Skipped = int(skipped.Int64)
		run.Failed = int(failed.Int64)
		run.Confirmed = int(confirmed.Int64)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FileCount returns the number of file results recorded for a run
func (s *Store) FileCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_results WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
