package interpolators

import (
	"fmt"

	"golang.org/x/exp/mmap"

	"github.com/tuttyfrutyee/experanto/internal/npyio"
)

// sampleStore is random-offset read access to a raw row-major
// [rows, cols] sample array. Both backends support concurrent reads,
// which keeps Interpolate safe to call from multiple goroutines.
type sampleStore interface {
	Rows() int
	Cols() int

	// At reads the single element (row, col).
	At(row, col int) (float64, error)

	// ReadRows reads rows [start, end) across all columns, row-major.
	ReadRows(start, end int) ([]float64, error)

	// ReadColumn reads rows [start, end) of one column.
	ReadColumn(col, start, end int) ([]float64, error)

	Close() error
}

// denseStore is a fully materialized in-memory backend, loaded from a
// .npy file.
type denseStore struct {
	data []float64
	rows int
	cols int
}

func newDenseStore(arr *npyio.Array) (*denseStore, error) {
	switch len(arr.Shape) {
	case 1:
		return &denseStore{data: arr.Data, rows: arr.Shape[0], cols: 1}, nil
	case 2:
		return &denseStore{data: arr.Data, rows: arr.Shape[0], cols: arr.Shape[1]}, nil
	}
	return nil, fmt.Errorf("sequence data must be 1- or 2-dimensional, got shape %v", arr.Shape)
}

func (s *denseStore) Rows() int { return s.rows }
func (s *denseStore) Cols() int { return s.cols }

func (s *denseStore) At(row, col int) (float64, error) {
	if err := s.check(row, row+1, col); err != nil {
		return 0, err
	}
	return s.data[row*s.cols+col], nil
}

func (s *denseStore) ReadRows(start, end int) ([]float64, error) {
	if err := s.check(start, end, 0); err != nil {
		return nil, err
	}
	return s.data[start*s.cols : end*s.cols], nil
}

func (s *denseStore) ReadColumn(col, start, end int) ([]float64, error) {
	if err := s.check(start, end, col); err != nil {
		return nil, err
	}
	out := make([]float64, end-start)
	for i := range out {
		out[i] = s.data[(start+i)*s.cols+col]
	}
	return out, nil
}

func (s *denseStore) Close() error { return nil }

func (s *denseStore) check(start, end, col int) error {
	if start < 0 || end > s.rows || start > end || col < 0 || col >= s.cols {
		return fmt.Errorf("%w: rows [%d, %d) col %d of [%d, %d] store", ErrFrameIndexRange, start, end, col, s.rows, s.cols)
	}
	return nil
}

// mmapStore is a memory-mapped backend over a flat .mem file, for
// stores too large to materialize. Reads decode the declared dtype on
// the fly; the OS pages data in as windows are touched.
type mmapStore struct {
	r     *mmap.ReaderAt
	dtype npyio.Dtype
	rows  int
	cols  int
	item  int
}

func openMmapStore(path string, dtype npyio.Dtype, rows, cols int) (*mmapStore, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	want := rows * cols * dtype.ItemSize()
	if r.Len() != want {
		r.Close()
		return nil, fmt.Errorf("%s: size %d does not match declared shape [%d, %d] of dtype %s (%d bytes)",
			path, r.Len(), rows, cols, dtype, want)
	}
	return &mmapStore{r: r, dtype: dtype, rows: rows, cols: cols, item: dtype.ItemSize()}, nil
}

func (s *mmapStore) Rows() int { return s.rows }
func (s *mmapStore) Cols() int { return s.cols }

func (s *mmapStore) At(row, col int) (float64, error) {
	if err := s.check(row, row+1, col); err != nil {
		return 0, err
	}
	buf := make([]byte, s.item)
	off := int64(row*s.cols+col) * int64(s.item)
	if _, err := s.r.ReadAt(buf, off); err != nil {
		return 0, fmt.Errorf("reading element (%d, %d): %w", row, col, err)
	}
	return s.dtype.Decode(buf), nil
}

func (s *mmapStore) ReadRows(start, end int) ([]float64, error) {
	if err := s.check(start, end, 0); err != nil {
		return nil, err
	}
	n := (end - start) * s.cols
	buf := make([]byte, n*s.item)
	if _, err := s.r.ReadAt(buf, int64(start*s.cols)*int64(s.item)); err != nil {
		return nil, fmt.Errorf("reading rows [%d, %d): %w", start, end, err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = s.dtype.Decode(buf[i*s.item:])
	}
	return out, nil
}

func (s *mmapStore) ReadColumn(col, start, end int) ([]float64, error) {
	if err := s.check(start, end, col); err != nil {
		return nil, err
	}
	// One contiguous read batches the page faults for the whole window.
	block, err := s.ReadRows(start, end)
	if err != nil {
		return nil, err
	}
	out := make([]float64, end-start)
	for i := range out {
		out[i] = block[i*s.cols+col]
	}
	return out, nil
}

func (s *mmapStore) Close() error { return s.r.Close() }

func (s *mmapStore) check(start, end, col int) error {
	if start < 0 || end > s.rows || start > end || col < 0 || col >= s.cols {
		return fmt.Errorf("%w: rows [%d, %d) col %d of [%d, %d] store", ErrFrameIndexRange, start, end, col, s.rows, s.cols)
	}
	return nil
}
