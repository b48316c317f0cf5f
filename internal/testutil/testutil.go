// Package testutil builds on-disk device fixtures for tests: sequence
// devices (dense or memory-mapped) and screen devices with mixed trial
// kinds, laid out exactly as the recording pipeline writes them.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

// SequenceConfig describes a sequence device fixture.
type SequenceConfig struct {
	SamplingRate float64
	StartTime    float64
	EndTime      float64
	Data         []float64 // row-major [NTimestamps, NSignals]
	NTimestamps  int
	NSignals     int

	// MemBacked selects a flat data.mem file of Dtype instead of
	// data.npy. Dtype defaults to float64.
	MemBacked bool
	Dtype     npyio.Dtype

	// PhaseShifts enables per-channel phase correction; length must be
	// NSignals.
	PhaseShifts []float64

	// NeuronProperties writes per-unit coordinate/id/field arrays and
	// references them from the metadata.
	NeuronProperties bool
}

// WriteSequenceDevice creates a sequence device directory under dir.
func WriteSequenceDevice(t *testing.T, dir string, cfg SequenceConfig) {
	t.Helper()

	if len(cfg.Data) != cfg.NTimestamps*cfg.NSignals {
		t.Fatalf("fixture data has %d values, want %d", len(cfg.Data), cfg.NTimestamps*cfg.NSignals)
	}
	if cfg.Dtype == "" {
		cfg.Dtype = npyio.Float64
	}
	mustMkdir(t, dir)

	meta := map[string]any{
		"modality":               "sequence",
		"sampling_rate":          cfg.SamplingRate,
		"start_time":             cfg.StartTime,
		"end_time":               cfg.EndTime,
		"dtype":                  dtypeName(cfg.Dtype),
		"n_timestamps":           cfg.NTimestamps,
		"n_signals":              cfg.NSignals,
		"phase_shift_per_signal": len(cfg.PhaseShifts) > 0,
	}

	if len(cfg.PhaseShifts) > 0 {
		mustMkdir(t, filepath.Join(dir, "meta"))
		mustWriteNpy(t, filepath.Join(dir, "meta", "phase_shifts.npy"), cfg.PhaseShifts, len(cfg.PhaseShifts))
	}

	if cfg.NeuronProperties {
		mustMkdir(t, filepath.Join(dir, "meta"))
		coords := make([]float64, cfg.NSignals*3)
		ids := make([]float64, cfg.NSignals)
		fields := make([]float64, cfg.NSignals)
		for i := 0; i < cfg.NSignals; i++ {
			coords[i*3] = float64(i)
			ids[i] = float64(100 + i)
			fields[i] = 1
		}
		mustWriteNpy(t, filepath.Join(dir, "meta", "cell_motor_coordinates.npy"), coords, cfg.NSignals, 3)
		mustWriteNpy(t, filepath.Join(dir, "meta", "unit_ids.npy"), ids, cfg.NSignals)
		mustWriteNpy(t, filepath.Join(dir, "meta", "fields.npy"), fields, cfg.NSignals)
		meta["neuron_properties"] = map[string]string{
			"cell_motor_coordinates": "meta/cell_motor_coordinates.npy",
			"unit_ids":               "meta/unit_ids.npy",
			"fields":                 "meta/fields.npy",
		}
	}

	if cfg.MemBacked {
		if err := npyio.WriteRaw(filepath.Join(dir, "data.mem"), cfg.Dtype, cfg.Data); err != nil {
			t.Fatalf("writing data.mem: %v", err)
		}
	} else {
		mustWriteNpy(t, filepath.Join(dir, "data.npy"), cfg.Data, cfg.NTimestamps, cfg.NSignals)
	}

	writeMetaYml(t, dir, meta)
}

// TrialSpec describes one trial of a screen device fixture.
type TrialSpec struct {
	Modality  string // "image", "video" or "blank"
	ImageSize []int
	NumFrames int       // videos only; images and blanks are 1
	Frames    []float64 // pixel payload, row-major; ignored for blanks
	FillValue float64   // blanks only
	Tier      string    // optional split label
}

// ScreenConfig describes a screen device fixture.
type ScreenConfig struct {
	Timestamps []float64 // one display time per frame across all trials
	Trials     []TrialSpec
}

// WriteScreenDevice creates a screen device directory under dir. Trial
// first_frame_idx values are derived from the cumulative frame counts.
func WriteScreenDevice(t *testing.T, dir string, cfg ScreenConfig) {
	t.Helper()

	mustMkdir(t, dir)
	mustMkdir(t, filepath.Join(dir, "meta"))
	mustMkdir(t, filepath.Join(dir, "data"))

	writeMetaYml(t, dir, map[string]any{"modality": "screen"})
	mustWriteNpy(t, filepath.Join(dir, "timestamps.npy"), cfg.Timestamps, len(cfg.Timestamps))

	firstFrame := 0
	for i, trial := range cfg.Trials {
		name := fmt.Sprintf("%05d", i)
		numFrames := 1
		if trial.Modality == "video" {
			numFrames = trial.NumFrames
		}

		meta := map[string]any{
			"modality":        trial.Modality,
			"first_frame_idx": firstFrame,
		}
		if trial.ImageSize != nil {
			meta["image_size"] = trial.ImageSize
		}
		if trial.Tier != "" {
			meta["tier"] = trial.Tier
		}
		switch trial.Modality {
		case "video":
			meta["num_frames"] = numFrames
		case "blank":
			meta["fill_value"] = trial.FillValue
		}

		raw, err := yaml.Marshal(meta)
		if err != nil {
			t.Fatalf("marshaling trial %d metadata: %v", i, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "meta", name+".yml"), raw, 0o644); err != nil {
			t.Fatalf("writing trial %d metadata: %v", i, err)
		}

		if trial.Modality != "blank" {
			h, w := trial.ImageSize[0], trial.ImageSize[1]
			if numFrames == 1 {
				mustWriteNpy(t, filepath.Join(dir, "data", name+".npy"), trial.Frames, h, w)
			} else {
				mustWriteNpy(t, filepath.Join(dir, "data", name+".npy"), trial.Frames, numFrames, h, w)
			}
		}
		firstFrame += numFrames
	}
}

// Ramp returns n values 0, 1, ..., n-1, a convenient recognizable
// signal for exactness checks.
func Ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// ConstFrames returns nFrames frames of size h x w where frame k is
// filled with base+k.
func ConstFrames(nFrames, h, w int, base float64) []float64 {
	out := make([]float64, nFrames*h*w)
	for k := 0; k < nFrames; k++ {
		for i := 0; i < h*w; i++ {
			out[k*h*w+i] = base + float64(k)
		}
	}
	return out
}

func writeMetaYml(t *testing.T, dir string, meta map[string]any) {
	t.Helper()
	raw, err := yaml.Marshal(meta)
	if err != nil {
		t.Fatalf("marshaling metadata: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.yml"), raw, 0o644); err != nil {
		t.Fatalf("writing meta.yml: %v", err)
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWriteNpy(t *testing.T, path string, data []float64, shape ...int) {
	t.Helper()
	if err := npyio.Write(path, data, shape...); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func dtypeName(d npyio.Dtype) string {
	switch d {
	case npyio.Float64:
		return "float64"
	case npyio.Float32:
		return "float32"
	case npyio.Int64:
		return "int64"
	case npyio.Int32:
		return "int32"
	case npyio.Int16:
		return "int16"
	case npyio.Uint8:
		return "uint8"
	}
	return string(d)
}
