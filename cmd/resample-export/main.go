// Command resample-export resamples an experiment's sequence devices
// onto a uniform time grid and writes the aligned channel values into
// a SQLite run database.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/tuttyfrutyee/experanto/experiment"
	"github.com/tuttyfrutyee/experanto/internal/version"
	"github.com/tuttyfrutyee/experanto/interpolators"
)

var (
	root     = flag.String("root", "", "experiment root directory")
	dbPath   = flag.String("db", "resampled.db", "output SQLite database")
	rate     = flag.Float64("rate", 30, "resampling rate in Hz")
	start    = flag.Float64("start", math.NaN(), "start time (defaults to each device's valid start)")
	end      = flag.Float64("end", math.NaN(), "end time (defaults to each device's valid end)")
	mode     = flag.String("mode", interpolators.ModeLinear, "interpolation mode: linear or nearest_neighbor")
	window   = flag.Int("window", 5, "interp window in raw samples")
	keepNaNs = flag.Bool("keep-nans", false, "propagate NaN raw samples instead of bridging them")

	// batchSize bounds how many query times are reconstructed per
	// database transaction.
	batchSize = flag.Int("batch", 4096, "query times per transaction")

	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("resample-export %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}
	if *root == "" {
		log.Fatal("missing required -root")
	}

	exp, err := experiment.Open(*root, interpolators.Options{
		InterpolationMode: *mode,
		KeepNaNs:          *keepNaNs,
		InterpWindow:      *window,
	})
	if err != nil {
		log.Fatalf("opening experiment: %v", err)
	}
	defer exp.Close()

	store, err := OpenExportStore(*dbPath)
	if err != nil {
		log.Fatalf("opening export store: %v", err)
	}
	defer store.Close()

	runID, err := store.BeginRun(*root, *rate, *mode)
	if err != nil {
		log.Fatalf("starting run: %v", err)
	}
	log.Printf("run %s: exporting %s at %g Hz", runID, *root, *rate)

	var total int64
	for _, name := range exp.DeviceNames() {
		dev, _ := exp.Device(name)
		seq, ok := dev.(*interpolators.SequenceInterpolator)
		if !ok {
			log.Printf("device %s: not a sequence device, skipping", name)
			continue
		}

		rows, err := exportDevice(store, runID, name, seq)
		if err != nil {
			log.Fatalf("device %s: %v", name, err)
		}
		log.Printf("device %s: %d rows", name, rows)
		total += rows
	}

	if err := store.FinishRun(runID, total); err != nil {
		log.Fatalf("finishing run: %v", err)
	}
	log.Printf("run %s: %d rows written to %s", runID, total, *dbPath)
}

// exportDevice walks the device's clipped valid range in batches and
// streams the reconstructed values into the store.
func exportDevice(store *ExportStore, runID, name string, seq *interpolators.SequenceInterpolator) (int64, error) {
	iv := seq.ValidInterval()
	lo, hi := iv.Start, iv.End
	if !math.IsNaN(*start) && *start > lo {
		lo = *start
	}
	if !math.IsNaN(*end) && *end < hi {
		hi = *end
	}
	if lo >= hi {
		log.Printf("device %s: requested range misses valid interval %v, skipping", name, iv)
		return 0, nil
	}

	dt := 1.0 / *rate
	var total int64
	for batchStart := lo; batchStart < hi; batchStart += float64(*batchSize) * dt {
		times := make([]float64, 0, *batchSize)
		for i := 0; i < *batchSize; i++ {
			t := batchStart + float64(i)*dt
			if t >= hi {
				break
			}
			times = append(times, t)
		}
		if len(times) == 0 {
			break
		}

		samples, mask, err := seq.Interpolate(times)
		if err != nil {
			return total, err
		}
		valid := times[:0:0]
		for i, ok := range mask {
			if ok {
				valid = append(valid, times[i])
			}
		}
		rows, err := store.WriteSamples(runID, name, valid, samples)
		if err != nil {
			return total, err
		}
		total += rows
	}
	return total, nil
}
