// Package experiment aggregates the devices recorded in one experiment
// session and routes time-based queries across them, so callers can
// pull temporally aligned multi-modal samples without touching
// per-device details.
package experiment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/tuttyfrutyee/experanto/interpolators"
)

// Experiment owns one interpolator per discovered device. Devices are
// any child directories of the experiment root holding a meta.yml.
// Construction happens once at load time; the device set is immutable
// afterwards.
type Experiment struct {
	root    string
	names   []string
	devices map[string]interpolators.Interpolator
}

// Open scans root for device directories and constructs their
// interpolators with the given options.
func Open(root string, opts interpolators.Options) (*Experiment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning experiment root: %w", err)
	}

	e := &Experiment{root: root, devices: map[string]interpolators.Interpolator{}}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		deviceRoot := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(deviceRoot, "meta.yml")); err != nil {
			continue
		}
		dev, err := interpolators.New(deviceRoot, opts)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("experiment %s: %w", root, err)
		}
		e.devices[entry.Name()] = dev
		e.names = append(e.names, entry.Name())
	}
	if len(e.names) == 0 {
		return nil, fmt.Errorf("experiment %s: no device directories found", root)
	}
	sort.Strings(e.names)
	return e, nil
}

// Root returns the experiment root directory.
func (e *Experiment) Root() string { return e.root }

// DeviceNames returns the discovered device names in sorted order.
func (e *Experiment) DeviceNames() []string {
	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

// Device returns the interpolator for a named device.
func (e *Experiment) Device(name string) (interpolators.Interpolator, bool) {
	dev, ok := e.devices[name]
	return dev, ok
}

// ValidRange returns the valid interval of a named device.
func (e *Experiment) ValidRange(name string) (interpolators.TimeInterval, error) {
	dev, ok := e.devices[name]
	if !ok {
		return interpolators.TimeInterval{}, fmt.Errorf("experiment %s: no device %q", e.root, name)
	}
	return dev.ValidInterval(), nil
}

// Interpolate fans one query out across every device. Each device
// filters the times against its own valid interval, so the per-device
// sample blocks may cover different subsets of the query; the masks
// say which.
func (e *Experiment) Interpolate(times []float64) (map[string]*interpolators.Samples, map[string][]bool, error) {
	samples := make(map[string]*interpolators.Samples, len(e.names))
	masks := make(map[string][]bool, len(e.names))
	for _, name := range e.names {
		s, mask, err := e.devices[name].Interpolate(times)
		if err != nil {
			return nil, nil, fmt.Errorf("experiment %s: device %s: %w", e.root, name, err)
		}
		samples[name] = s
		masks[name] = mask
	}
	return samples, masks, nil
}

// Close releases any device resources (memory-mapped stores).
func (e *Experiment) Close() error {
	var first error
	for _, dev := range e.devices {
		if c, ok := dev.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
