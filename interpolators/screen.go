package interpolators

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tuttyfrutyee/experanto/internal/monitoring"
	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

// screenEpsilon pushes boundary-exact query times past the frame
// boundary before binary search. Changing it changes which frame
// boundary-exact queries resolve to.
const screenEpsilon = 1e-4

var trialFilePattern = regexp.MustCompile(`^\d{5}\.yml$`)

// ScreenInterpolator composes an ordered collection of stimulus trials
// into one queryable frame stream. A flat timestamp array gives the
// display time of every frame across all trials; frame loads are
// grouped per trial so each backing file is read at most once per
// query.
type ScreenInterpolator struct {
	root string
	opts Options

	timestamps    []float64
	validInterval TimeInterval

	trials        []Trial
	firstFrameIdx []int
	dataFileIdx   []int // global frame position -> owning trial index

	imageSize []int
}

func newScreenInterpolator(root string, meta *deviceMeta, opts Options) (Interpolator, error) {
	ts, err := npyio.Read(filepath.Join(root, "timestamps.npy"))
	if err != nil {
		return nil, fmt.Errorf("device %s: loading timestamps: %w", root, err)
	}
	if len(ts.Shape) != 1 || len(ts.Data) < 2 {
		return nil, fmt.Errorf("device %s: timestamps must be a 1-d array of at least 2 frames, got shape %v", root, ts.Shape)
	}
	for i := 1; i < len(ts.Data); i++ {
		if ts.Data[i] <= ts.Data[i-1] {
			return nil, fmt.Errorf("device %s: frame timestamps must be strictly increasing at index %d", root, i)
		}
	}

	s := &ScreenInterpolator{
		root:       root,
		opts:       opts,
		timestamps: ts.Data,
		validInterval: TimeInterval{
			Start: ts.Data[0],
			End:   ts.Data[len(ts.Data)-1],
		},
	}

	if err := s.parseTrials(); err != nil {
		return nil, err
	}
	return s, nil
}

// parseTrials scans the trial metadata directory, sorts the numbered
// files numerically and builds the frame-to-trial mapping tables.
func (s *ScreenInterpolator) parseTrials() error {
	metaDir := filepath.Join(s.root, "meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return fmt.Errorf("device %s: scanning trial metadata: %w", s.root, err)
	}

	type numbered struct {
		n    int
		name string
	}
	var files []numbered
	for _, e := range entries {
		if e.IsDir() || !trialFilePattern.MatchString(e.Name()) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ".yml"))
		if err != nil {
			return fmt.Errorf("device %s: bad trial file name %q: %w", s.root, e.Name(), err)
		}
		files = append(files, numbered{n: n, name: e.Name()})
	}
	if len(files) == 0 {
		return fmt.Errorf("device %s: no trial metadata files under %s", s.root, metaDir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	totalFrames := 0
	for _, f := range files {
		trial, err := NewTrial(filepath.Join(metaDir, f.name))
		if err != nil {
			return err
		}
		if trial.FirstFrameIdx() != totalFrames {
			return fmt.Errorf("device %s: trial %s declares first_frame_idx %d, expected %d",
				s.root, f.name, trial.FirstFrameIdx(), totalFrames)
		}
		s.trials = append(s.trials, trial)
		s.firstFrameIdx = append(s.firstFrameIdx, trial.FirstFrameIdx())
		for i := 0; i < trial.NumFrames(); i++ {
			s.dataFileIdx = append(s.dataFileIdx, len(s.trials)-1)
		}
		totalFrames += trial.NumFrames()
	}
	if totalFrames != len(s.timestamps) {
		return fmt.Errorf("device %s: trials cover %d frames but timestamps has %d entries",
			s.root, totalFrames, len(s.timestamps))
	}

	// Canonical frame size comes from the first trial reporting one.
	for _, t := range s.trials {
		if t.ImageSize() != nil {
			s.imageSize = t.ImageSize()
			break
		}
	}
	if len(s.imageSize) != 2 {
		return fmt.Errorf("device %s: no trial declares a concrete [h, w] image size", s.root)
	}
	if !s.opts.Rescale {
		for i, t := range s.trials {
			sz := t.ImageSize()
			if sz != nil && (sz[0] != s.imageSize[0] || sz[1] != s.imageSize[1]) {
				return fmt.Errorf("device %s: trial %d has image size %v, want %v (enable rescale to mix sizes)",
					s.root, i, sz, s.imageSize)
			}
		}
	}
	return nil
}

// ValidInterval implements Interpolator.
func (s *ScreenInterpolator) ValidInterval() TimeInterval { return s.validInterval }

// Contains reports whether any query time is inside the valid interval.
func (s *ScreenInterpolator) Contains(times []float64) bool {
	for _, t := range times {
		if s.validInterval.Contains(t) {
			return true
		}
	}
	return false
}

// Trials returns the ordered trial sequence.
func (s *ScreenInterpolator) Trials() []Trial { return s.trials }

// Timestamps returns the display time of every frame across all trials.
func (s *ScreenInterpolator) Timestamps() []float64 { return s.timestamps }

// ImageSize returns the canonical [h, w] frame size.
func (s *ScreenInterpolator) ImageSize() []int { return s.imageSize }

// Interpolate implements Interpolator. Valid query times resolve to the
// frame on display at that moment; returned samples are shaped
// [nValidTimes, h, w].
func (s *ScreenInterpolator) Interpolate(times []float64) (*Samples, []bool, error) {
	valid := s.validInterval.Intersect(times)
	h, w := s.imageSize[0], s.imageSize[1]

	adjusted := make([]float64, 0, len(times))
	for i, ok := range valid {
		if ok {
			// Fixed tie-break: boundary-exact times resolve to the
			// frame being displayed, not the one just ending.
			adjusted = append(adjusted, times[i]+screenEpsilon)
		}
	}
	if len(adjusted) == 0 {
		return &Samples{Shape: []int{0, h, w}}, valid, nil
	}
	for i := 1; i < len(adjusted); i++ {
		if adjusted[i] <= adjusted[i-1] {
			return nil, nil, fmt.Errorf("device %s: %w", s.root, ErrUnsortedQuery)
		}
	}

	// Convert times to global frame indices and group them by owning
	// trial so every backing file is loaded once.
	idx := make([]int, len(adjusted))
	byTrial := map[int][]int{}
	for i, t := range adjusted {
		fi := sort.SearchFloat64s(s.timestamps, t) - 1
		if fi < 0 || fi >= len(s.timestamps) {
			return nil, nil, fmt.Errorf("device %s: %w: frame index %d for query %d", s.root, ErrFrameIndexRange, fi, i)
		}
		idx[i] = fi
		trialIdx := s.dataFileIdx[fi]
		byTrial[trialIdx] = append(byTrial[trialIdx], i)
	}

	trialOrder := make([]int, 0, len(byTrial))
	for u := range byTrial {
		trialOrder = append(trialOrder, u)
	}
	sort.Ints(trialOrder)

	out := make([]float64, len(adjusted)*h*w)
	for _, u := range trialOrder {
		if err := s.scatterTrialFrames(u, idx, byTrial[u], out); err != nil {
			return nil, nil, err
		}
	}
	return &Samples{Shape: []int{len(adjusted), h, w}, Data: out}, valid, nil
}

// scatterTrialFrames loads trial u's full frame stack once and copies
// the requested frames into the output positions that belong to it.
func (s *ScreenInterpolator) scatterTrialFrames(u int, idx []int, positions []int, out []float64) error {
	trial := s.trials[u]
	data, err := trial.Data()
	if err != nil {
		return fmt.Errorf("device %s: %w", s.root, err)
	}

	var frames, fh, fw int
	switch len(data.Shape) {
	case 2:
		frames, fh, fw = 1, data.Shape[0], data.Shape[1]
	case 3:
		frames, fh, fw = data.Shape[0], data.Shape[1], data.Shape[2]
	default:
		return fmt.Errorf("device %s: trial %d data has shape %v, want 2 or 3 dims", s.root, u, data.Shape)
	}

	h, w := s.imageSize[0], s.imageSize[1]
	needsResize := fh != h || fw != w
	if needsResize {
		if !s.opts.Rescale {
			return fmt.Errorf("device %s: trial %d frames are %dx%d, want %dx%d and rescale is off", s.root, u, fh, fw, h, w)
		}
		if fh*w != fw*h {
			monitoring.Logf("device %s: rescaling trial %d frames %dx%d to %dx%d changes aspect ratio", s.root, u, fh, fw, h, w)
		}
	}

	for _, i := range positions {
		local := idx[i] - s.firstFrameIdx[u]
		if local < 0 || local >= frames {
			return fmt.Errorf("device %s: %w: local frame %d of trial %d with %d frames", s.root, ErrFrameIndexRange, local, u, frames)
		}
		frame := data.Data[local*fh*fw : (local+1)*fh*fw]
		if needsResize {
			frame = resizeArea(frame, fh, fw, h, w)
		}
		copy(out[i*h*w:(i+1)*h*w], frame)
	}
	return nil
}
