package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tuttyfrutyee/experanto/interpolators"
)

// ExportStore persists resampled channel values into a SQLite run
// database: one row per (run, device, time, channel).
type ExportStore struct {
	db *sql.DB
}

// OpenExportStore opens or creates the run database at path.
func OpenExportStore(path string) (*ExportStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			experiment_root TEXT,
			sampling_rate DOUBLE,
			interpolation_mode TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			n_rows BIGINT
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT,
			device TEXT,
			t DOUBLE,
			channel INTEGER,
			value DOUBLE,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS idx_samples_run_device ON samples(run_id, device);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &ExportStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ExportStore) Close() error { return s.db.Close() }

// BeginRun records a new export run and returns its identifier.
func (s *ExportStore) BeginRun(root string, rate float64, mode string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, experiment_root, sampling_rate, interpolation_mode) VALUES (?, ?, ?, ?)`,
		runID, root, rate, mode,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return runID, nil
}

// FinishRun stamps the run as completed with its total row count.
func (s *ExportStore) FinishRun(runID string, nRows int64) error {
	_, err := s.db.Exec(
		`UPDATE runs SET completed_at = ?, n_rows = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339), nRows, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// WriteSamples appends one block of reconstructed channel values.
// times must hold the valid query times the samples cover.
func (s *ExportStore) WriteSamples(runID, device string, times []float64, samples *interpolators.Samples) (int64, error) {
	if len(samples.Shape) != 2 {
		return 0, fmt.Errorf("device %s: expected [times, channels] samples, got shape %v", device, samples.Shape)
	}
	if samples.NumTimes() != len(times) {
		return 0, fmt.Errorf("device %s: %d sample rows for %d times", device, samples.NumTimes(), len(times))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT INTO samples (run_id, device, t, channel, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var rows int64
	nChannels := samples.Shape[1]
	for i, t := range times {
		block := samples.Block(i)
		for c := 0; c < nChannels; c++ {
			if _, err := stmt.Exec(runID, device, t, c, block[c]); err != nil {
				tx.Rollback()
				return 0, fmt.Errorf("inserting sample (%s, %g, %d): %w", device, t, c, err)
			}
			rows++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rows, nil
}
