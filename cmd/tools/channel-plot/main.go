// Command channel-plot renders one channel of a sequence device over a
// time range to a PNG line chart.
package main

import (
	"flag"
	"log"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tuttyfrutyee/experanto/interpolators"
)

var (
	root    = flag.String("root", "", "device root directory")
	channel = flag.Int("channel", 0, "channel to plot")
	rate    = flag.Float64("rate", 100, "plot sampling rate in Hz")
	start   = flag.Float64("start", math.NaN(), "start time (defaults to valid start)")
	end     = flag.Float64("end", math.NaN(), "end time (defaults to valid end)")
	mode    = flag.String("mode", interpolators.ModeLinear, "interpolation mode")
	output  = flag.String("o", "channel.png", "output PNG path")
)

func main() {
	flag.Parse()
	if *root == "" {
		log.Fatal("missing required -root")
	}

	dev, err := interpolators.New(*root, interpolators.Options{InterpolationMode: *mode})
	if err != nil {
		log.Fatalf("opening device: %v", err)
	}
	seq, ok := dev.(*interpolators.SequenceInterpolator)
	if !ok {
		log.Fatalf("device %s is not a sequence device", *root)
	}
	defer seq.Close()
	if *channel < 0 || *channel >= seq.NumSignals() {
		log.Fatalf("channel %d out of range [0, %d)", *channel, seq.NumSignals())
	}

	iv := seq.ValidInterval()
	lo, hi := iv.Start, iv.End
	if !math.IsNaN(*start) && *start > lo {
		lo = *start
	}
	if !math.IsNaN(*end) && *end < hi {
		hi = *end
	}
	if lo >= hi {
		log.Fatalf("requested range misses valid interval %v", iv)
	}

	dt := 1.0 / *rate
	var times []float64
	for t := lo; t < hi; t += dt {
		times = append(times, t)
	}

	samples, mask, err := seq.Interpolate(times)
	if err != nil {
		log.Fatalf("interpolating: %v", err)
	}

	pts := make(plotter.XYs, 0, samples.NumTimes())
	row := 0
	for i, ok := range mask {
		if !ok {
			continue
		}
		v := samples.Block(row)[*channel]
		row++
		if math.IsNaN(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: times[i], Y: v})
	}

	p := plot.New()
	p.Title.Text = *root
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "value"

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("building line: %v", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(14*vg.Inch, 6*vg.Inch, *output); err != nil {
		log.Fatalf("saving plot: %v", err)
	}
	log.Printf("wrote %d points for channel %d to %s", len(pts), *channel, *output)
}
