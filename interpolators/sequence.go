package interpolators

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/tuttyfrutyee/experanto/internal/interp"
	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

// SequenceInterpolator reconstructs a uniformly sampled multi-channel
// signal (e.g. neural responses) at arbitrary query times. The raw
// store is either a fully materialized data.npy or a memory-mapped
// data.mem of the shape and dtype declared in the device metadata.
//
// When per-channel phase shifts are configured, channel c's sample j
// lies at startTime + phaseShifts[c] + j*timeDelta, and the valid
// interval narrows so every channel has real coverage at every valid
// query time.
type SequenceInterpolator struct {
	root string
	opts Options

	samplingRate  float64
	timeDelta     float64
	startTime     float64
	endTime       float64
	validInterval TimeInterval

	phaseShifts []float64 // nil when phase correction is off
	store       sampleStore

	// Per-unit spatial metadata; carried alongside, never interpolated.
	cellMotorCoordinates *npyio.Array
	unitIDs              *npyio.Array
	fields               *npyio.Array
}

func newSequenceInterpolator(root string, meta *deviceMeta, opts Options) (Interpolator, error) {
	if meta.SamplingRate <= 0 {
		return nil, fmt.Errorf("device %s: sampling_rate must be positive, got %g", root, meta.SamplingRate)
	}
	s := &SequenceInterpolator{
		root:         root,
		opts:         opts,
		samplingRate: meta.SamplingRate,
		timeDelta:    1.0 / meta.SamplingRate,
		startTime:    meta.StartTime,
		endTime:      meta.EndTime,
		validInterval: TimeInterval{
			Start: meta.StartTime,
			End:   meta.EndTime,
		},
	}

	if meta.PhaseShiftPerSignal {
		shifts, err := npyio.Read(filepath.Join(root, "meta", "phase_shifts.npy"))
		if err != nil {
			return nil, fmt.Errorf("device %s: loading phase shifts: %w", root, err)
		}
		s.phaseShifts = shifts.Data
		// Every channel must have coverage at every valid time, so the
		// interval narrows by the extreme shifts.
		s.validInterval = TimeInterval{
			Start: s.startTime + floats.Max(s.phaseShifts),
			End:   s.endTime + floats.Min(s.phaseShifts),
		}
	}

	if np := meta.NeuronProperties; np != nil {
		var err error
		if s.cellMotorCoordinates, err = npyio.Read(filepath.Join(root, np.CellMotorCoordinates)); err != nil {
			return nil, fmt.Errorf("device %s: loading cell motor coordinates: %w", root, err)
		}
		if s.unitIDs, err = npyio.Read(filepath.Join(root, np.UnitIDs)); err != nil {
			return nil, fmt.Errorf("device %s: loading unit ids: %w", root, err)
		}
		if s.fields, err = npyio.Read(filepath.Join(root, np.Fields)); err != nil {
			return nil, fmt.Errorf("device %s: loading fields: %w", root, err)
		}
	}

	store, err := openSequenceStore(root, meta)
	if err != nil {
		return nil, err
	}
	s.store = store

	if s.phaseShifts != nil && len(s.phaseShifts) != s.store.Cols() {
		s.store.Close()
		return nil, fmt.Errorf("device %s: %d phase shifts for %d channels", root, len(s.phaseShifts), s.store.Cols())
	}
	return s, nil
}

// openSequenceStore picks the backend: data.npy is materialized in
// memory, data.mem is memory-mapped using the declared shape and dtype.
func openSequenceStore(root string, meta *deviceMeta) (sampleStore, error) {
	npyPath := filepath.Join(root, "data.npy")
	if _, err := os.Stat(npyPath); err == nil {
		arr, err := npyio.Read(npyPath)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", root, err)
		}
		return newDenseStore(arr)
	}
	dtype, err := npyio.ParseDtype(meta.Dtype)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", root, err)
	}
	return openMmapStore(filepath.Join(root, "data.mem"), dtype, meta.NTimestamps, meta.NSignals)
}

// ValidInterval implements Interpolator.
func (s *SequenceInterpolator) ValidInterval() TimeInterval { return s.validInterval }

// Contains reports whether any query time is inside the valid interval.
func (s *SequenceInterpolator) Contains(times []float64) bool {
	for _, t := range times {
		if s.validInterval.Contains(t) {
			return true
		}
	}
	return false
}

// SamplingRate returns the device's nominal sampling rate in Hz.
func (s *SequenceInterpolator) SamplingRate() float64 { return s.samplingRate }

// NumSignals returns the channel count of the raw store.
func (s *SequenceInterpolator) NumSignals() int { return s.store.Cols() }

// PhaseShifts returns the per-channel timing offsets, or nil when phase
// correction is off.
func (s *SequenceInterpolator) PhaseShifts() []float64 { return s.phaseShifts }

// CellMotorCoordinates returns the per-unit motor coordinates, or nil.
func (s *SequenceInterpolator) CellMotorCoordinates() *npyio.Array { return s.cellMotorCoordinates }

// UnitIDs returns the per-unit identifiers, or nil.
func (s *SequenceInterpolator) UnitIDs() *npyio.Array { return s.unitIDs }

// Fields returns the per-unit field identifiers, or nil.
func (s *SequenceInterpolator) Fields() *npyio.Array { return s.fields }

// Close releases the raw store. The interpolator must not be queried
// afterwards.
func (s *SequenceInterpolator) Close() error { return s.store.Close() }

// Interpolate implements Interpolator.
func (s *SequenceInterpolator) Interpolate(times []float64) (*Samples, []bool, error) {
	switch s.opts.InterpolationMode {
	case ModeNearestNeighbor, ModeLinear:
	default:
		return nil, nil, fmt.Errorf("%w: got %q", ErrInterpolationMode, s.opts.InterpolationMode)
	}

	valid := s.validInterval.Intersect(times)
	validTimes := make([]float64, 0, len(times))
	for i, ok := range valid {
		if ok {
			validTimes = append(validTimes, times[i])
		}
	}

	cols := s.store.Cols()
	if len(validTimes) == 0 {
		return &Samples{Shape: []int{0, cols}}, valid, nil
	}

	var (
		data []float64
		err  error
	)
	if s.opts.InterpolationMode == ModeNearestNeighbor {
		data, err = s.gatherNearest(validTimes)
	} else {
		data, err = s.reconstructLinear(validTimes)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("device %s: %w", s.root, err)
	}
	return &Samples{Shape: []int{len(validTimes), cols}, Data: data}, valid, nil
}

// sampleIndex converts a query time to the raw sample index at or
// before it on the given channel axis.
func (s *SequenceInterpolator) sampleIndex(t, shift float64) int {
	return int(math.Floor((t - shift - s.startTime) / s.timeDelta))
}

// gatherNearest snaps each query time to the raw sample at or before
// it. With phase shifts active the gather runs per (time, channel).
func (s *SequenceInterpolator) gatherNearest(validTimes []float64) ([]float64, error) {
	cols := s.store.Cols()
	out := make([]float64, len(validTimes)*cols)

	if s.phaseShifts == nil {
		for i, t := range validTimes {
			row := s.sampleIndex(t, 0)
			vals, err := s.store.ReadRows(row, row+1)
			if err != nil {
				return nil, err
			}
			copy(out[i*cols:(i+1)*cols], vals)
		}
		return out, nil
	}

	for i, t := range validTimes {
		for c := 0; c < cols; c++ {
			v, err := s.store.At(s.sampleIndex(t, s.phaseShifts[c]), c)
			if err != nil {
				return nil, err
			}
			out[i*cols+c] = v
		}
	}
	return out, nil
}

// reconstructLinear runs the windowed linear routine over every
// channel. Without phase shifts all channels share one time axis and
// one window, so the raw block is read once; with phase shifts each
// channel brackets the queries on its own shifted axis. Window sizing
// and clamping are identical in both cases.
func (s *SequenceInterpolator) reconstructLinear(validTimes []float64) ([]float64, error) {
	cols := s.store.Cols()
	out := make([]float64, len(validTimes)*cols)

	if s.phaseShifts == nil {
		start, end := s.window(validTimes, 0)
		block, err := s.store.ReadRows(start, end)
		if err != nil {
			return nil, err
		}
		axis := s.sampleAxis(start, end, 0)
		colBuf := make([]float64, end-start)
		for c := 0; c < cols; c++ {
			for j := range colBuf {
				colBuf[j] = block[j*cols+c]
			}
			vals, err := interp.Linear(colBuf, axis, validTimes, s.opts.KeepNaNs)
			if err != nil {
				return nil, err
			}
			for i, v := range vals {
				out[i*cols+c] = v
			}
		}
		return out, nil
	}

	for c := 0; c < cols; c++ {
		shift := s.phaseShifts[c]
		start, end := s.window(validTimes, shift)
		col, err := s.store.ReadColumn(c, start, end)
		if err != nil {
			return nil, err
		}
		axis := s.sampleAxis(start, end, shift)
		vals, err := interp.Linear(col, axis, validTimes, s.opts.KeepNaNs)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			out[i*cols+c] = v
		}
	}
	return out, nil
}

// window returns the raw sample range [start, end) bracketing the
// query span plus InterpWindow samples of context on each side,
// clamped to the store bounds.
func (s *SequenceInterpolator) window(validTimes []float64, shift float64) (int, int) {
	w := s.opts.InterpWindow
	start := s.sampleIndex(validTimes[0], shift) - w
	if start < 0 {
		start = 0
	}
	end := s.sampleIndex(validTimes[len(validTimes)-1], shift) + 1 + w
	if rows := s.store.Rows(); end > rows {
		end = rows
	}
	return start, end
}

// sampleAxis builds the raw timestamps for window rows [start, end) on
// the given channel axis.
func (s *SequenceInterpolator) sampleAxis(start, end int, shift float64) []float64 {
	axis := make([]float64, end-start)
	for j := range axis {
		axis[j] = s.startTime + shift + float64(start+j)*s.timeDelta
	}
	return axis
}
