// Package interp implements the piecewise-linear reconstruction
// primitive shared by the sequence interpolation paths.
package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	gonuminterp "gonum.org/v1/gonum/interp"
)

// ErrUnequalLengths reports a window whose values and time axis differ
// in length. This is a bounds/logic failure in the caller, not bad data.
var ErrUnequalLengths = errors.New("values and times must be the same length before interpolation")

// Linear reconstructs values at queryTimes from samples taken at
// sampleTimes. sampleTimes must be strictly increasing; queryTimes are
// clamped to the sampled range, so callers are expected to pass a
// window that brackets every query.
//
// keepNaNs selects how NaN samples (sensor dropout) behave: when true,
// any query whose bracketing segment touches a NaN sample yields NaN;
// when false, NaN samples are dropped and the gap is bridged by the
// nearest valid neighbors.
func Linear(values, sampleTimes, queryTimes []float64, keepNaNs bool) ([]float64, error) {
	if len(values) != len(sampleTimes) {
		return nil, fmt.Errorf("%w (values %d, times %d)", ErrUnequalLengths, len(values), len(sampleTimes))
	}
	out := make([]float64, len(queryTimes))
	if len(queryTimes) == 0 {
		return out, nil
	}
	if len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}

	if keepNaNs {
		linearSegments(values, sampleTimes, queryTimes, out)
		return out, nil
	}

	// Drop NaN samples so the fit bridges dropouts.
	vt := values
	st := sampleTimes
	if hasNaN(values) {
		vt = make([]float64, 0, len(values))
		st = make([]float64, 0, len(sampleTimes))
		for i, v := range values {
			if !math.IsNaN(v) {
				vt = append(vt, v)
				st = append(st, sampleTimes[i])
			}
		}
	}
	switch len(vt) {
	case 0:
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	case 1:
		for i := range out {
			out[i] = vt[0]
		}
		return out, nil
	}

	var pl gonuminterp.PiecewiseLinear
	if err := pl.Fit(st, vt); err != nil {
		return nil, fmt.Errorf("fitting linear interpolant: %w", err)
	}
	lo, hi := st[0], st[len(st)-1]
	for i, t := range queryTimes {
		out[i] = pl.Predict(clamp(t, lo, hi))
	}
	return out, nil
}

// linearSegments evaluates each query against its bracketing segment
// directly, so a NaN endpoint propagates into the result.
func linearSegments(values, sampleTimes, queryTimes []float64, out []float64) {
	n := len(sampleTimes)
	for i, t := range queryTimes {
		t = clamp(t, sampleTimes[0], sampleTimes[n-1])
		// Leftmost j with sampleTimes[j] >= t.
		j := sort.SearchFloat64s(sampleTimes, t)
		if j == 0 || sampleTimes[j] == t {
			out[i] = values[j]
			continue
		}
		t0, t1 := sampleTimes[j-1], sampleTimes[j]
		v0, v1 := values[j-1], values[j]
		out[i] = v0 + (v1-v0)*(t-t0)/(t1-t0)
	}
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func clamp(t, lo, hi float64) float64 {
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	return t
}
