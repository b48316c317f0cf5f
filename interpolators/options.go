package interpolators

import "fmt"

// Interpolation modes accepted by sequence devices.
const (
	ModeLinear          = "linear"
	ModeNearestNeighbor = "nearest_neighbor"
)

// Options configures interpolator construction. Fields irrelevant to a
// device's modality are ignored, so one Options value can be passed
// through an experiment-wide fan-out unchanged.
type Options struct {
	// InterpolationMode selects the sequence reconstruction mode.
	// Defaults to ModeLinear. An unsupported value is reported on the
	// first Interpolate call, not here.
	InterpolationMode string

	// KeepNaNs makes NaN raw samples propagate into any query whose
	// bracketing window touches them instead of being bridged.
	KeepNaNs bool

	// InterpWindow is how many raw samples before and after the query
	// range are fetched to give the linear routine bracketing context.
	// Defaults to 5.
	InterpWindow int

	// Rescale resizes every screen frame to the device's canonical
	// image size.
	Rescale bool
}

// Normalize applies defaults for unset values and validates the rest.
func (o Options) Normalize() (Options, error) {
	opts := o
	if opts.InterpolationMode == "" {
		opts.InterpolationMode = ModeLinear
	}
	if opts.InterpWindow == 0 {
		opts.InterpWindow = 5
	}
	if opts.InterpWindow < 0 {
		return opts, fmt.Errorf("invalid interp window %d: must be non-negative", opts.InterpWindow)
	}
	return opts, nil
}
