package interpolators

import (
	"errors"

	"github.com/tuttyfrutyee/experanto/internal/interp"
)

var (
	// ErrUnknownModality reports a metadata discriminator with no
	// registered concrete type. Raised at construction time.
	ErrUnknownModality = errors.New("unknown modality")

	// ErrInterpolationMode reports an unsupported reconstruction mode.
	// Raised on the first Interpolate call.
	ErrInterpolationMode = errors.New("interpolation mode must be linear or nearest_neighbor")

	// ErrUnsortedQuery reports query timestamps that are not strictly
	// increasing after the boundary epsilon adjustment. This is a caller
	// contract violation.
	ErrUnsortedQuery = errors.New("query times must be strictly increasing")

	// ErrFrameIndexRange reports a computed frame or sample index
	// outside the valid range after validity filtering. This indicates
	// an internal invariant failure, never bad input data.
	ErrFrameIndexRange = errors.New("computed index out of valid range")

	// ErrUnequalLengths reports a reconstruction window whose values
	// and time axis differ in length.
	ErrUnequalLengths = interp.ErrUnequalLengths
)
