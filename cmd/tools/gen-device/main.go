// Command gen-device writes a synthetic experiment directory: a sequence
// device with sine-wave signals (optionally with NaN dropouts) and a
// screen device mixing image, video and blank trials. Useful for
// exercising resample-export and channel-plot without recorded data.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

var (
	outDir    = flag.String("o", "experiment", "output experiment directory")
	duration  = flag.Float64("duration", 10, "recording duration in seconds")
	rate      = flag.Float64("rate", 30, "sequence sampling rate in Hz")
	nSignals  = flag.Int("signals", 8, "number of sequence channels")
	dropout   = flag.Float64("dropout", 0.01, "per-sample NaN dropout probability")
	frameRate = flag.Float64("frame-rate", 5, "screen frame rate in Hz")
	imageSize = flag.Int("image-size", 16, "square frame edge length in pixels")
	seed      = flag.Int64("seed", 1, "random seed")
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := writeSequence(filepath.Join(*outDir, "responses"), rng); err != nil {
		log.Fatalf("writing sequence device: %v", err)
	}
	if err := writeScreen(filepath.Join(*outDir, "screen"), rng); err != nil {
		log.Fatalf("writing screen device: %v", err)
	}
	log.Printf("wrote synthetic experiment to %s", *outDir)
}

func writeYAML(path string, doc any) error {
	buf, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func writeSequence(root string, rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Join(root, "meta"), 0o755); err != nil {
		return err
	}

	n := int(*duration * *rate)
	dt := 1.0 / *rate
	data := make([]float64, n**nSignals)
	for c := 0; c < *nSignals; c++ {
		freq := 0.5 + 0.25*float64(c)
		phase := rng.Float64() * 2 * math.Pi
		for i := 0; i < n; i++ {
			v := math.Sin(2*math.Pi*freq*float64(i)*dt + phase)
			if rng.Float64() < *dropout {
				v = math.NaN()
			}
			data[i**nSignals+c] = v
		}
	}
	if err := npyio.Write(filepath.Join(root, "data.npy"), data, n, *nSignals); err != nil {
		return err
	}

	shifts := make([]float64, *nSignals)
	for c := range shifts {
		shifts[c] = (rng.Float64() - 0.5) * dt
	}
	if err := npyio.Write(filepath.Join(root, "meta", "phase_shifts.npy"), shifts, *nSignals); err != nil {
		return err
	}

	meta := map[string]any{
		"modality":               "sequence",
		"sampling_rate":          *rate,
		"start_time":             0.0,
		"end_time":               *duration,
		"dtype":                  "<f8",
		"n_timestamps":           n,
		"n_signals":              *nSignals,
		"phase_shift_per_signal": true,
	}
	return writeYAML(filepath.Join(root, "meta.yml"), meta)
}

func writeScreen(root string, rng *rand.Rand) error {
	for _, d := range []string{"meta", "data"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return err
		}
	}

	frameDt := 1.0 / *frameRate
	nFrames := int(*duration * *frameRate)
	ts := make([]float64, nFrames)
	for i := range ts {
		ts[i] = float64(i) * frameDt
	}
	if err := npyio.Write(filepath.Join(root, "timestamps.npy"), ts, len(ts)); err != nil {
		return err
	}

	h, w := *imageSize, *imageSize
	tiers := []string{"train", "test", "validation"}

	idx, frame := 0, 0
	for frame < nFrames {
		stem := fmt.Sprintf("%05d", idx)
		left := nFrames - frame

		var meta map[string]any
		switch {
		case idx%4 == 3 && left >= 1:
			// A grey screen between stimuli.
			meta = map[string]any{
				"modality":        "blank",
				"first_frame_idx": frame,
				"num_frames":      1,
				"image_size":      []int{h, w},
				"fill_value":      128.0,
				"tier":            "none",
			}
			frame++
		case idx%2 == 0 || left < 3:
			data := make([]float64, h*w)
			base := rng.Float64() * 255
			for i := range data {
				data[i] = base + rng.Float64()*10
			}
			if err := npyio.Write(filepath.Join(root, "data", stem+".npy"), data, h, w); err != nil {
				return err
			}
			meta = map[string]any{
				"modality":        "image",
				"first_frame_idx": frame,
				"num_frames":      1,
				"image_size":      []int{h, w},
				"tier":            tiers[rng.Intn(len(tiers))],
			}
			frame++
		default:
			clip := 3 + rng.Intn(3)
			if clip > left {
				clip = left
			}
			data := make([]float64, clip*h*w)
			for k := 0; k < clip; k++ {
				base := float64(k) * 20
				for i := 0; i < h*w; i++ {
					data[k*h*w+i] = base + rng.Float64()*5
				}
			}
			if err := npyio.Write(filepath.Join(root, "data", stem+".npy"), data, clip, h, w); err != nil {
				return err
			}
			meta = map[string]any{
				"modality":        "video",
				"first_frame_idx": frame,
				"num_frames":      clip,
				"image_size":      []int{h, w},
				"tier":            tiers[rng.Intn(len(tiers))],
			}
			frame += clip
		}

		if err := writeYAML(filepath.Join(root, "meta", stem+".yml"), meta); err != nil {
			return err
		}
		idx++
	}

	meta := map[string]any{
		"modality": "screen",
	}
	return writeYAML(filepath.Join(root, "meta.yml"), meta)
}
