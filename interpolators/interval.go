package interpolators

import "fmt"

// TimeInterval is a half-open time range [Start, End) in seconds.
type TimeInterval struct {
	Start float64
	End   float64
}

// Contains reports whether t lies inside the interval. End itself is
// excluded.
func (iv TimeInterval) Contains(t float64) bool {
	return iv.Start <= t && t < iv.End
}

// Intersect returns an elementwise membership mask over times.
func (iv TimeInterval) Intersect(times []float64) []bool {
	mask := make([]bool, len(times))
	for i, t := range times {
		mask[i] = iv.Contains(t)
	}
	return mask
}

func (iv TimeInterval) String() string {
	return fmt.Sprintf("TimeInterval [%g, %g)", iv.Start, iv.End)
}
