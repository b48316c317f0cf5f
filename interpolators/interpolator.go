// Package interpolators resamples independently-clocked experimental
// signal streams onto arbitrary query timestamps. Each recorded device
// (continuous multi-channel signals, or a frame-indexed visual stimulus
// stream) is modeled as one Interpolator that maps query times to
// reconstructed samples plus a validity mask.
package interpolators

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Modality identifies the concrete interpolator type for a device. The
// set is closed: metadata tags outside it fail with ErrUnknownModality.
type Modality int

const (
	ModalityUnknown Modality = iota
	ModalitySequence
	ModalityScreen
)

func (m Modality) String() string {
	switch m {
	case ModalitySequence:
		return "sequence"
	case ModalityScreen:
		return "screen"
	}
	return "unknown"
}

// ParseModality resolves a metadata discriminator string.
func ParseModality(s string) (Modality, error) {
	switch s {
	case "sequence":
		return ModalitySequence, nil
	case "screen":
		return ModalityScreen, nil
	}
	return ModalityUnknown, fmt.Errorf("%w: %q", ErrUnknownModality, s)
}

// Interpolator is one experiment device: an immutable, time-addressable
// view over its stored samples.
//
// Interpolate reconstructs values at the given monotonically increasing
// query times. Times outside the device's valid interval are excluded
// from the returned samples (not padded) and flagged false in the mask,
// whose length always equals len(times). Implementations hold no
// mutable state, so a single instance is safe for concurrent queries.
type Interpolator interface {
	Interpolate(times []float64) (*Samples, []bool, error)

	// Contains reports whether any of the query times is valid.
	Contains(times []float64) bool

	// ValidInterval is the half-open range the device can reconstruct.
	// It may be narrower than the raw recording span once per-channel
	// phase correction is applied.
	ValidInterval() TimeInterval
}

// deviceMeta is the on-disk meta.yml schema shared by all modalities.
// Sequence-specific fields are zero for screen devices.
type deviceMeta struct {
	Modality            string               `yaml:"modality"`
	SamplingRate        float64              `yaml:"sampling_rate"`
	StartTime           float64              `yaml:"start_time"`
	EndTime             float64              `yaml:"end_time"`
	Dtype               string               `yaml:"dtype"`
	NTimestamps         int                  `yaml:"n_timestamps"`
	NSignals            int                  `yaml:"n_signals"`
	PhaseShiftPerSignal bool                 `yaml:"phase_shift_per_signal"`
	NeuronProperties    *neuronPropertyPaths `yaml:"neuron_properties"`
}

// neuronPropertyPaths holds device-relative paths to per-channel
// spatial metadata arrays.
type neuronPropertyPaths struct {
	CellMotorCoordinates string `yaml:"cell_motor_coordinates"`
	UnitIDs              string `yaml:"unit_ids"`
	Fields               string `yaml:"fields"`
}

func loadDeviceMeta(root string) (*deviceMeta, error) {
	raw, err := os.ReadFile(filepath.Join(root, "meta.yml"))
	if err != nil {
		return nil, fmt.Errorf("reading device metadata: %w", err)
	}
	meta := &deviceMeta{}
	if err := yaml.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Join(root, "meta.yml"), err)
	}
	return meta, nil
}

// interpolatorFactories is the closed dispatch table from modality to
// constructor, populated once at init and never mutated.
var interpolatorFactories = map[Modality]func(root string, meta *deviceMeta, opts Options) (Interpolator, error){
	ModalitySequence: newSequenceInterpolator,
	ModalityScreen:   newScreenInterpolator,
}

// New reads the device metadata under root and constructs the matching
// concrete interpolator.
func New(root string, opts Options) (Interpolator, error) {
	meta, err := loadDeviceMeta(root)
	if err != nil {
		return nil, err
	}
	modality, err := ParseModality(meta.Modality)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", root, err)
	}
	factory, ok := interpolatorFactories[modality]
	if !ok {
		return nil, fmt.Errorf("device %s: %w: %s", root, ErrUnknownModality, modality)
	}
	opts, err = opts.Normalize()
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", root, err)
	}
	return factory(root, meta, opts)
}
