package interpolators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

// writeTrialFixture lays out meta/<name>.yml and, when payload is not
// nil, data/<name>.npy in the screen-device structure NewTrial expects.
func writeTrialFixture(t *testing.T, name, metaYml string, payload []float64, shape ...int) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "meta"), 0o755))
	metaPath := filepath.Join(root, "meta", name+".yml")
	require.NoError(t, os.WriteFile(metaPath, []byte(metaYml), 0o644))
	if payload != nil {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
		require.NoError(t, npyio.Write(filepath.Join(root, "data", name+".npy"), payload, shape...))
	}
	return metaPath
}

func TestImageTrial(t *testing.T) {
	metaPath := writeTrialFixture(t, "00000", `
modality: image
image_size: [2, 3]
first_frame_idx: 4
tier: train
`, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	trial, err := NewTrial(metaPath)
	require.NoError(t, err)
	require.Equal(t, TrialImage, trial.Modality())
	require.Equal(t, 1, trial.NumFrames())
	require.Equal(t, 4, trial.FirstFrameIdx())
	require.Equal(t, []int{2, 3}, trial.ImageSize())
	require.Equal(t, "train", trial.Meta("tier"))

	data, err := trial.Data()
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, data.Shape)
	require.Equal(t, 6.0, data.At(1, 2))
}

func TestVideoTrial(t *testing.T) {
	metaPath := writeTrialFixture(t, "00001", `
modality: video
image_size: [2, 2]
first_frame_idx: 0
num_frames: 3
`, []float64{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}, 3, 2, 2)

	trial, err := NewTrial(metaPath)
	require.NoError(t, err)
	require.Equal(t, TrialVideo, trial.Modality())
	require.Equal(t, 3, trial.NumFrames())

	data, err := trial.Data()
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 2}, data.Shape)
	require.Equal(t, 2.0, data.At(2, 0, 0))
}

func TestVideoTrialRequiresNumFrames(t *testing.T) {
	metaPath := writeTrialFixture(t, "00002", `
modality: video
image_size: [2, 2]
first_frame_idx: 0
`, nil)

	_, err := NewTrial(metaPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "num_frames")
}

func TestBlankTrialSynthesizesWithoutStorage(t *testing.T) {
	// No data file is written: a blank must never touch disk.
	metaPath := writeTrialFixture(t, "00003", `
modality: blank
image_size: [2, 2]
first_frame_idx: 7
fill_value: 0.25
`, nil)

	trial, err := NewTrial(metaPath)
	require.NoError(t, err)
	require.Equal(t, TrialBlank, trial.Modality())
	require.Equal(t, 1, trial.NumFrames())

	data, err := trial.Data()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 2}, data.Shape)
	for _, v := range data.Data {
		require.Equal(t, 0.25, v)
	}
}

func TestTrialUnknownModality(t *testing.T) {
	metaPath := writeTrialFixture(t, "00004", "modality: sound\n", nil)

	_, err := NewTrial(metaPath)
	require.ErrorIs(t, err, ErrUnknownModality)
}

func TestParseTrialModality(t *testing.T) {
	for s, want := range map[string]TrialModality{
		"image": TrialImage,
		"video": TrialVideo,
		"blank": TrialBlank,
	} {
		got, err := ParseTrialModality(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, s, got.String())
	}

	_, err := ParseTrialModality("hologram")
	require.ErrorIs(t, err, ErrUnknownModality)
}

func TestTrialMissingDataFile(t *testing.T) {
	metaPath := writeTrialFixture(t, "00005", `
modality: image
image_size: [2, 2]
first_frame_idx: 0
`, nil)

	trial, err := NewTrial(metaPath)
	require.NoError(t, err)
	_, err = trial.Data()
	require.Error(t, err) // storage errors propagate, no recovery
}
