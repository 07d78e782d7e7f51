// Package store keeps a SQLite ledger of pipeline runs so outcomes can be
// compared across verifier and corpus versions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"kernelport/internal/logging"
)

// Stages recorded in the ledger.
const (
	StagePort   = "port"
	StageVerify = "verify"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded pipeline stage execution.
type Run struct {
	ID         string
	Stage      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Counts holds the stage summary, e.g. outcome name to number of tests.
	Counts map[string]int
}

// Outcome is one per-test record of a run.
type Outcome struct {
	Test     string
	Artifact string
	Outcome  string
	Rule     string
}

// HistoryStore is the run ledger.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// NewHistoryStore opens (creating if needed) the ledger at path.
func NewHistoryStore(path string, logger *zap.Logger) (*HistoryStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases consistent across calls.
	db.SetMaxOpenConns(1)

	store := &HistoryStore{db: db, dbPath: path, logger: logging.For(logger, logging.CategoryStore)}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		counts_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	outcomesTable := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		test TEXT NOT NULL,
		artifact TEXT NOT NULL,
		outcome TEXT NOT NULL,
		rule TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_test ON outcomes(test);
	`

	for _, table := range []string{runsTable, outcomesTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// RecordRun stores a run and its per-test outcomes in one transaction. An
// empty run.ID is replaced by a fresh UUID; the stored ID is returned.
func (s *HistoryStore) RecordRun(run Run, outcomes []Outcome) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return "", fmt.Errorf("failed to encode counts: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, stage, started_at, finished_at, counts_json) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Stage, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout), string(counts),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO outcomes (run_id, seq, test, artifact, outcome, rule) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()
	for i, o := range outcomes {
		if _, err := stmt.Exec(run.ID, i, o.Test, o.Artifact, o.Outcome, o.Rule); err != nil {
			return "", fmt.Errorf("failed to insert outcome for %s: %w", o.Test, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("Recorded run",
		zap.String("id", run.ID),
		zap.String("stage", run.Stage),
		zap.Int("outcomes", len(outcomes)))
	return run.ID, nil
}

// ListRuns returns the most recent runs first. stage filters when non-empty.
func (s *HistoryStore) ListRuns(stage string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	query := "SELECT id, stage, started_at, finished_at, counts_json FROM runs"
	args := []interface{}{}
	if stage != "" {
		query += " WHERE stage = ?"
		args = append(args, stage)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID, or sql.ErrNoRows.
func (s *HistoryStore) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT id, stage, started_at, finished_at, counts_json FROM runs WHERE id = ?", id)
	return scanRun(row)
}

// Outcomes returns a run's per-test records in recorded order.
func (s *HistoryStore) Outcomes(runID string) ([]Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT test, artifact, outcome, COALESCE(rule, '') FROM outcomes WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Test, &o.Artifact, &o.Outcome, &o.Rule); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		started, finished string
		countsJSON        string
	)
	if err := sc.Scan(&run.ID, &run.Stage, &started, &finished, &countsJSON); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("bad started_at for run %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Run{}, fmt.Errorf("bad finished_at for run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &run.Counts); err != nil {
		return Run{}, fmt.Errorf("bad counts for run %s: %w", run.ID, err)
	}
	return run, nil
}
