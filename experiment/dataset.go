package experiment

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/tuttyfrutyee/experanto/interpolators"
)

// ChunkedDataset slices an experiment into fixed-size windows of
// resampled, temporally aligned multi-modal samples. The sample grid
// spans the reference device's valid range at the requested rate.
type ChunkedDataset struct {
	exp         *Experiment
	chunkSize   int
	sampleTimes []float64
}

// NewChunkedDataset builds a chunked view over exp. refDevice (usually
// the screen) anchors the sample grid.
func NewChunkedDataset(exp *Experiment, refDevice string, samplingRate float64, chunkSize int) (*ChunkedDataset, error) {
	if samplingRate <= 0 {
		return nil, fmt.Errorf("sampling rate must be positive, got %g", samplingRate)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	vr, err := exp.ValidRange(refDevice)
	if err != nil {
		return nil, err
	}
	return &ChunkedDataset{
		exp:         exp,
		chunkSize:   chunkSize,
		sampleTimes: sampleGrid(vr, samplingRate),
	}, nil
}

// sampleGrid generates the uniform query times covering iv, end
// exclusive.
func sampleGrid(iv interpolators.TimeInterval, rate float64) []float64 {
	dt := 1.0 / rate
	n := int((iv.End - iv.Start) / dt)
	for float64(n)*dt+iv.Start >= iv.End {
		n--
	}
	n++ // count, not last index
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{iv.Start}
	}
	return floats.Span(make([]float64, n), iv.Start, iv.Start+float64(n-1)*dt)
}

// Len returns the number of full chunks available.
func (d *ChunkedDataset) Len() int {
	return len(d.sampleTimes) / d.chunkSize
}

// SampleTimes returns the full resampled time grid.
func (d *ChunkedDataset) SampleTimes() []float64 { return d.sampleTimes }

// Chunk returns the aligned per-device sample blocks for window i.
func (d *ChunkedDataset) Chunk(i int) (map[string]*interpolators.Samples, error) {
	if i < 0 || i >= d.Len() {
		return nil, fmt.Errorf("chunk %d out of range [0, %d)", i, d.Len())
	}
	times := d.sampleTimes[i*d.chunkSize : (i+1)*d.chunkSize]
	samples, _, err := d.exp.Interpolate(times)
	if err != nil {
		return nil, err
	}
	return samples, nil
}
