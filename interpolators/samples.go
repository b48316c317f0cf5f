package interpolators

import "fmt"

// Samples holds reconstructed values for the valid query times. Data is
// row-major with the leading dimension indexing query times: sequence
// devices produce [nTimes, nSignals], screen devices [nTimes, h, w].
type Samples struct {
	Shape []int
	Data  []float64
}

// NumTimes returns the number of valid query times the samples cover.
func (s *Samples) NumTimes() int {
	if len(s.Shape) == 0 {
		return 0
	}
	return s.Shape[0]
}

// Block returns the contiguous values for query time i: a channel row
// for sequence devices, a flattened frame for screen devices.
func (s *Samples) Block(i int) []float64 {
	stride := 1
	for _, d := range s.Shape[1:] {
		stride *= d
	}
	return s.Data[i*stride : (i+1)*stride]
}

func (s *Samples) String() string {
	return fmt.Sprintf("Samples%v", s.Shape)
}
