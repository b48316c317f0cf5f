package interpolators

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tuttyfrutyee/experanto/internal/npyio"
	"github.com/tuttyfrutyee/experanto/internal/testutil"
)

func newSequenceFixture(t *testing.T, cfg testutil.SequenceConfig, opts Options) *SequenceInterpolator {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "responses")
	testutil.WriteSequenceDevice(t, dir, cfg)
	dev, err := New(dir, opts)
	require.NoError(t, err)
	seq, ok := dev.(*SequenceInterpolator)
	require.True(t, ok, "expected *SequenceInterpolator, got %T", dev)
	t.Cleanup(func() { seq.Close() })
	return seq
}

// rampConfig is a 10-sample single-channel ramp at 10 Hz over [0, 1),
// the reference scenario: samples 0..9 at times 0.0..0.9.
func rampConfig() testutil.SequenceConfig {
	return testutil.SequenceConfig{
		SamplingRate: 10,
		StartTime:    0,
		EndTime:      1.0,
		Data:         testutil.Ramp(10),
		NTimestamps:  10,
		NSignals:     1,
	}
}

func TestSequenceReferenceScenario(t *testing.T) {
	t.Run("linear", func(t *testing.T) {
		seq := newSequenceFixture(t, rampConfig(), Options{InterpolationMode: ModeLinear})
		samples, mask, err := seq.Interpolate([]float64{0.05})
		require.NoError(t, err)
		require.Equal(t, []bool{true}, mask)
		require.Equal(t, []int{1, 1}, samples.Shape)
		require.InDelta(t, 0.5, samples.Data[0], 1e-12)
	})

	t.Run("nearest_neighbor", func(t *testing.T) {
		seq := newSequenceFixture(t, rampConfig(), Options{InterpolationMode: ModeNearestNeighbor})
		samples, _, err := seq.Interpolate([]float64{0.05})
		require.NoError(t, err)
		require.Equal(t, 0.0, samples.Data[0])
	})
}

func TestSequenceValidityMask(t *testing.T) {
	seq := newSequenceFixture(t, rampConfig(), Options{})

	times := []float64{-0.5, 0.0, 0.35, 0.999, 1.0, 2.0}
	samples, mask, err := seq.Interpolate(times)
	require.NoError(t, err)

	want := []bool{false, true, true, true, false, false}
	if diff := cmp.Diff(want, mask); diff != "" {
		t.Errorf("mask mismatch (-want +got):\n%s", diff)
	}
	// Invalid entries are excluded from samples, not padded.
	require.Equal(t, []int{3, 1}, samples.Shape)
}

func TestSequenceContainsBoundaries(t *testing.T) {
	seq := newSequenceFixture(t, rampConfig(), Options{})

	require.True(t, seq.Contains([]float64{0.0}))
	require.True(t, seq.Contains([]float64{-5, 0.5}))
	require.False(t, seq.Contains([]float64{1.0})) // end excluded
	require.False(t, seq.Contains([]float64{-1, 7}))
	require.Equal(t, TimeInterval{Start: 0, End: 1}, seq.ValidInterval())
}

// exactConfig uses a binary-exact sampling rate so sample times and
// query times are identical bit patterns.
func exactConfig(nSignals int) testutil.SequenceConfig {
	n := 16
	data := make([]float64, n*nSignals)
	for i := 0; i < n; i++ {
		for c := 0; c < nSignals; c++ {
			data[i*nSignals+c] = float64(10*(c+1) + i)
		}
	}
	return testutil.SequenceConfig{
		SamplingRate: 4, // dt = 0.25
		StartTime:    0,
		EndTime:      4.0,
		Data:         data,
		NTimestamps:  n,
		NSignals:     nSignals,
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	cfg := exactConfig(2)
	for _, mode := range []string{ModeLinear, ModeNearestNeighbor} {
		t.Run(mode, func(t *testing.T) {
			seq := newSequenceFixture(t, cfg, Options{InterpolationMode: mode})

			times := make([]float64, cfg.NTimestamps)
			for i := range times {
				times[i] = cfg.StartTime + float64(i)*0.25
			}
			samples, mask, err := seq.Interpolate(times)
			require.NoError(t, err)
			for _, ok := range mask {
				require.True(t, ok)
			}
			if diff := cmp.Diff(cfg.Data, samples.Data); diff != "" {
				t.Errorf("native timestamps did not reproduce raw data (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSequenceLinearMidpoint(t *testing.T) {
	seq := newSequenceFixture(t, exactConfig(1), Options{})

	// Midpoint between samples 4 (value 14) and 5 (value 15).
	samples, _, err := seq.Interpolate([]float64{4*0.25 + 0.125})
	require.NoError(t, err)
	require.Equal(t, 14.5, samples.Data[0])
}

func TestSequenceMemBackedMatchesDense(t *testing.T) {
	for _, dtype := range []npyio.Dtype{npyio.Float64, npyio.Float32} {
		t.Run(string(dtype), func(t *testing.T) {
			cfgDense := exactConfig(3)
			cfgMem := exactConfig(3)
			cfgMem.MemBacked = true
			cfgMem.Dtype = dtype

			dense := newSequenceFixture(t, cfgDense, Options{})
			mem := newSequenceFixture(t, cfgMem, Options{})

			times := []float64{0.1, 0.6, 1.33, 2.5, 3.7}
			wantSamples, wantMask, err := dense.Interpolate(times)
			require.NoError(t, err)
			gotSamples, gotMask, err := mem.Interpolate(times)
			require.NoError(t, err)

			require.Equal(t, wantMask, gotMask)
			if diff := cmp.Diff(wantSamples.Data, gotSamples.Data); diff != "" {
				t.Errorf("backends disagree (-dense +mem):\n%s", diff)
			}
		})
	}
}

func TestSequenceKeepNaNs(t *testing.T) {
	cfg := exactConfig(1)
	cfg.Data[5] = math.NaN() // dropout at t = 1.25

	t.Run("bridged", func(t *testing.T) {
		seq := newSequenceFixture(t, cfg, Options{KeepNaNs: false})
		// Query inside the gap: neighbors 4 (value 14, t=1.0) and
		// 6 (value 16, t=1.5) bridge it.
		samples, _, err := seq.Interpolate([]float64{1.25})
		require.NoError(t, err)
		require.Equal(t, 15.0, samples.Data[0])

		// Away from the gap the reconstruction is untouched.
		samples, _, err = seq.Interpolate([]float64{3.0})
		require.NoError(t, err)
		require.Equal(t, 22.0, samples.Data[0])
	})

	t.Run("propagated", func(t *testing.T) {
		seq := newSequenceFixture(t, cfg, Options{KeepNaNs: true})
		samples, _, err := seq.Interpolate([]float64{1.1, 1.4})
		require.NoError(t, err)
		for i, v := range samples.Data {
			if !math.IsNaN(v) {
				t.Errorf("bracketing query %d = %v, want NaN", i, v)
			}
		}

		samples, _, err = seq.Interpolate([]float64{3.0})
		require.NoError(t, err)
		require.Equal(t, 22.0, samples.Data[0])
	})
}

// phaseShiftConfig builds two channels sampled at 2 Hz whose clocks
// are skewed by +/- 0.125 s. Channel 0 holds 10+j, channel 1 holds
// 20+j.
func phaseShiftConfig() testutil.SequenceConfig {
	n := 10
	data := make([]float64, n*2)
	for j := 0; j < n; j++ {
		data[j*2] = float64(10 + j)
		data[j*2+1] = float64(20 + j)
	}
	return testutil.SequenceConfig{
		SamplingRate: 2, // dt = 0.5
		StartTime:    0,
		EndTime:      5.0,
		Data:         data,
		NTimestamps:  n,
		NSignals:     2,
		PhaseShifts:  []float64{0.125, -0.125},
	}
}

func TestSequencePhaseShiftsNarrowValidInterval(t *testing.T) {
	seq := newSequenceFixture(t, phaseShiftConfig(), Options{})
	require.Equal(t, TimeInterval{Start: 0.125, End: 4.875}, seq.ValidInterval())
	require.Equal(t, []float64{0.125, -0.125}, seq.PhaseShifts())
}

func TestSequencePhaseShiftedLinearAtKnots(t *testing.T) {
	seq := newSequenceFixture(t, phaseShiftConfig(), Options{})

	// Query exactly on channel 0's sample clock: t_j = 0.125 + j*0.5.
	// Channel 0 must reproduce its raw sample exactly; channel 1 sees
	// the midpoint of its own samples j and j+1.
	for _, j := range []int{2, 3, 5, 7} {
		tq := 0.125 + float64(j)*0.5
		samples, _, err := seq.Interpolate([]float64{tq})
		require.NoError(t, err)
		require.Equal(t, float64(10+j), samples.Data[0], "channel 0 at its knot %d", j)
		require.Equal(t, float64(20+j)+0.5, samples.Data[1], "channel 1 midpoint at %v", tq)
	}
}

func TestSequencePhaseShiftedNearest(t *testing.T) {
	seq := newSequenceFixture(t, phaseShiftConfig(), Options{InterpolationMode: ModeNearestNeighbor})

	// At channel 0's knot t_j, channel 0 gathers sample j; channel 1's
	// clock reads j+0.5 so its floor gather also lands on sample j.
	for _, j := range []int{1, 4, 6} {
		tq := 0.125 + float64(j)*0.5
		samples, _, err := seq.Interpolate([]float64{tq})
		require.NoError(t, err)
		require.Equal(t, float64(10+j), samples.Data[0])
		require.Equal(t, float64(20+j), samples.Data[1])
	}
}

func TestSequenceUnsupportedMode(t *testing.T) {
	// Construction succeeds; the mode error surfaces on the first
	// Interpolate call.
	seq := newSequenceFixture(t, rampConfig(), Options{InterpolationMode: "cubic"})
	_, _, err := seq.Interpolate([]float64{0.5})
	require.ErrorIs(t, err, ErrInterpolationMode)

	// Reported even when no query time falls inside the valid interval.
	_, _, err = seq.Interpolate([]float64{-10.0})
	require.ErrorIs(t, err, ErrInterpolationMode)
}

func TestSequenceNeuronProperties(t *testing.T) {
	cfg := exactConfig(3)
	cfg.NeuronProperties = true
	seq := newSequenceFixture(t, cfg, Options{})

	require.NotNil(t, seq.CellMotorCoordinates())
	require.Equal(t, []int{3, 3}, seq.CellMotorCoordinates().Shape)
	require.NotNil(t, seq.UnitIDs())
	require.Equal(t, 100.0, seq.UnitIDs().Data[0])
	require.NotNil(t, seq.Fields())
	require.Equal(t, 3, seq.NumSignals())
	require.Equal(t, 4.0, seq.SamplingRate())
}

func TestFactoryUnknownModality(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.yml"), []byte("modality: audio\n"), 0o644))

	_, err := New(dir, Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownModality), "got %v", err)
}

func TestFactoryMissingMetadata(t *testing.T) {
	_, err := New(t.TempDir(), Options{})
	require.Error(t, err)
}
