package interpolators

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

// TrialModality identifies the concrete stimulus type of one trial.
type TrialModality int

const (
	TrialUnknown TrialModality = iota
	TrialImage
	TrialVideo
	TrialBlank
)

func (m TrialModality) String() string {
	switch m {
	case TrialImage:
		return "image"
	case TrialVideo:
		return "video"
	case TrialBlank:
		return "blank"
	}
	return "unknown"
}

// ParseTrialModality resolves a trial metadata discriminator string.
func ParseTrialModality(s string) (TrialModality, error) {
	switch s {
	case "image":
		return TrialImage, nil
	case "video":
		return TrialVideo, nil
	case "blank":
		return TrialBlank, nil
	}
	return TrialUnknown, fmt.Errorf("%w: %q", ErrUnknownModality, s)
}

// Trial is one physically-stored stimulus unit contributing a
// contiguous run of frames to a screen device's global timeline.
// Instances are immutable and live as long as the owning device.
type Trial interface {
	Modality() TrialModality

	// ImageSize returns the [height, width] of the trial's frames, or
	// nil when the trial does not declare one (possible for blanks).
	ImageSize() []int

	// FirstFrameIdx is the global index of the trial's first frame.
	// The trial covers the half-open range
	// [FirstFrameIdx, FirstFrameIdx+NumFrames).
	FirstFrameIdx() int

	NumFrames() int

	// Data returns the frame stack for this trial, shaped
	// [NumFrames, h, w] or [h, w] for single-frame trials. Callers
	// must normalize to three dimensions.
	Data() (*npyio.Array, error)

	// Meta reads a value from the trial's parsed metadata record, nil
	// when absent. Split tiers (train/validation/test) travel here.
	Meta(key string) any
}

// trialMeta is the on-disk per-trial metadata schema.
type trialMeta struct {
	Modality      string  `yaml:"modality"`
	ImageSize     []int   `yaml:"image_size"`
	FirstFrameIdx int     `yaml:"first_frame_idx"`
	NumFrames     int     `yaml:"num_frames"`
	FillValue     float64 `yaml:"fill_value"`
}

// baseTrial carries the attributes every variant shares. The pixel
// payload lives in a sibling data/<name>.npy; blanks never touch it.
type baseTrial struct {
	modality      TrialModality
	metaPath      string
	dataPath      string
	raw           map[string]any
	imageSize     []int
	firstFrameIdx int
	numFrames     int
}

func (t *baseTrial) Modality() TrialModality { return t.modality }
func (t *baseTrial) ImageSize() []int        { return t.imageSize }
func (t *baseTrial) FirstFrameIdx() int      { return t.firstFrameIdx }
func (t *baseTrial) NumFrames() int          { return t.numFrames }
func (t *baseTrial) Meta(key string) any     { return t.raw[key] }

func (t *baseTrial) Data() (*npyio.Array, error) {
	arr, err := npyio.Read(t.dataPath)
	if err != nil {
		return nil, fmt.Errorf("trial %s: %w", t.metaPath, err)
	}
	return arr, nil
}

func newBaseTrial(metaPath string, modality TrialModality, meta *trialMeta, raw map[string]any, numFrames int) baseTrial {
	stem := strings.TrimSuffix(filepath.Base(metaPath), filepath.Ext(metaPath))
	metaDir := filepath.Dir(metaPath)
	return baseTrial{
		modality:      modality,
		metaPath:      metaPath,
		dataPath:      filepath.Join(filepath.Dir(metaDir), "data", stem+".npy"),
		raw:           raw,
		imageSize:     meta.ImageSize,
		firstFrameIdx: meta.FirstFrameIdx,
		numFrames:     numFrames,
	}
}

type imageTrial struct{ baseTrial }

type videoTrial struct{ baseTrial }

// blankTrial synthesizes a constant frame and never reads storage.
type blankTrial struct {
	baseTrial
	fillValue float64
}

func (t *blankTrial) Data() (*npyio.Array, error) {
	if len(t.imageSize) != 2 {
		return nil, fmt.Errorf("trial %s: blank trial needs a concrete image_size, got %v", t.metaPath, t.imageSize)
	}
	h, w := t.imageSize[0], t.imageSize[1]
	data := make([]float64, h*w)
	for i := range data {
		data[i] = t.fillValue
	}
	return &npyio.Array{Shape: []int{1, h, w}, Data: data}, nil
}

// trialFactories is the closed dispatch table for trial construction.
var trialFactories = map[TrialModality]func(metaPath string, meta *trialMeta, raw map[string]any) (Trial, error){
	TrialImage: func(metaPath string, meta *trialMeta, raw map[string]any) (Trial, error) {
		return &imageTrial{newBaseTrial(metaPath, TrialImage, meta, raw, 1)}, nil
	},
	TrialVideo: func(metaPath string, meta *trialMeta, raw map[string]any) (Trial, error) {
		if meta.NumFrames <= 0 {
			return nil, fmt.Errorf("trial %s: video needs a positive num_frames, got %d", metaPath, meta.NumFrames)
		}
		return &videoTrial{newBaseTrial(metaPath, TrialVideo, meta, raw, meta.NumFrames)}, nil
	},
	TrialBlank: func(metaPath string, meta *trialMeta, raw map[string]any) (Trial, error) {
		return &blankTrial{
			baseTrial: newBaseTrial(metaPath, TrialBlank, meta, raw, 1),
			fillValue: meta.FillValue,
		}, nil
	},
}

// NewTrial parses one numbered trial metadata file and constructs the
// matching variant.
func NewTrial(metaPath string) (Trial, error) {
	rawBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading trial metadata: %w", err)
	}
	meta := &trialMeta{}
	if err := yaml.Unmarshal(rawBytes, meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", metaPath, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(rawBytes, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", metaPath, err)
	}

	modality, err := ParseTrialModality(meta.Modality)
	if err != nil {
		return nil, fmt.Errorf("trial %s: %w", metaPath, err)
	}
	factory, ok := trialFactories[modality]
	if !ok {
		return nil, fmt.Errorf("trial %s: %w: %s", metaPath, ErrUnknownModality, modality)
	}
	return factory(metaPath, meta, raw)
}
