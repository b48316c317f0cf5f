package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuttyfrutyee/experanto/interpolators"
)

func openTestStore(t *testing.T) *ExportStore {
	t.Helper()
	store, err := OpenExportStore(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.BeginRun("/data/session42", 30, interpolators.ModeLinear)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, store.FinishRun(runID, 123))

	var nRows int64
	var mode string
	err = store.db.QueryRow(
		`SELECT n_rows, interpolation_mode FROM runs WHERE run_id = ?`, runID,
	).Scan(&nRows, &mode)
	require.NoError(t, err)
	require.Equal(t, int64(123), nRows)
	require.Equal(t, interpolators.ModeLinear, mode)
}

func TestStoreWriteSamples(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.BeginRun("/data/session42", 10, interpolators.ModeLinear)
	require.NoError(t, err)

	samples := &interpolators.Samples{
		Shape: []int{2, 3},
		Data:  []float64{1, 2, 3, 4, 5, 6},
	}
	rows, err := store.WriteSamples(runID, "responses", []float64{0.1, 0.2}, samples)
	require.NoError(t, err)
	require.Equal(t, int64(6), rows)

	var count int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM samples WHERE run_id = ? AND device = ?`, runID, "responses",
	).Scan(&count))
	require.Equal(t, 6, count)

	var value float64
	require.NoError(t, store.db.QueryRow(
		`SELECT value FROM samples WHERE run_id = ? AND t = ? AND channel = ?`, runID, 0.2, 2,
	).Scan(&value))
	require.Equal(t, 6.0, value)
}

func TestStoreWriteSamplesValidation(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.BeginRun("/x", 10, interpolators.ModeLinear)
	require.NoError(t, err)

	// Frame-shaped samples are rejected.
	_, err = store.WriteSamples(runID, "screen", []float64{0.1}, &interpolators.Samples{
		Shape: []int{1, 2, 2},
		Data:  make([]float64, 4),
	})
	require.Error(t, err)

	// Row count must match the time count.
	_, err = store.WriteSamples(runID, "responses", []float64{0.1, 0.2}, &interpolators.Samples{
		Shape: []int{1, 1},
		Data:  []float64{1},
	})
	require.Error(t, err)
}
