// Package npyio reads and writes NumPy .npy array files and the flat
// raw (.mem) sample files that accompany device metadata.
//
// Only C-order little-endian arrays are supported, which covers every
// file the recording pipeline produces. Values are widened to float64
// on read regardless of the stored dtype.
package npyio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Dtype is a NumPy array-protocol type string for the element types the
// recording pipeline emits.
type Dtype string

const (
	Float64 Dtype = "<f8"
	Float32 Dtype = "<f4"
	Int64   Dtype = "<i8"
	Int32   Dtype = "<i4"
	Int16   Dtype = "<i2"
	Uint8   Dtype = "|u1"
)

// ParseDtype resolves either a NumPy type string ("<f4") or a plain type
// name ("float32") to a Dtype.
func ParseDtype(s string) (Dtype, error) {
	switch strings.TrimSpace(s) {
	case "<f8", "float64", "float":
		return Float64, nil
	case "<f4", "float32":
		return Float32, nil
	case "<i8", "int64", "int":
		return Int64, nil
	case "<i4", "int32":
		return Int32, nil
	case "<i2", "int16":
		return Int16, nil
	case "|u1", "uint8":
		return Uint8, nil
	}
	return "", fmt.Errorf("unsupported dtype %q", s)
}

// ItemSize returns the element size in bytes.
func (d Dtype) ItemSize() int {
	switch d {
	case Float64, Int64:
		return 8
	case Float32, Int32:
		return 4
	case Int16:
		return 2
	case Uint8:
		return 1
	}
	return 0
}

// Decode reads one element from b (which must hold at least ItemSize
// bytes) and widens it to float64.
func (d Dtype) Decode(b []byte) float64 {
	switch d {
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Uint8:
		return float64(b[0])
	}
	return math.NaN()
}

// Encode writes v into b as one element of this dtype. Integer dtypes
// truncate toward zero.
func (d Dtype) Encode(b []byte, v float64) {
	switch d {
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Int64:
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case Uint8:
		b[0] = byte(v)
	}
}

// Array is an in-memory n-dimensional array in row-major order.
type Array struct {
	Shape []int
	Data  []float64
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// At returns the element at the given multi-index.
func (a *Array) At(idx ...int) float64 {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("npyio: At called with %d indices on %d-d array", len(idx), len(a.Shape)))
	}
	off := 0
	for i, ix := range idx {
		off = off*a.Shape[i] + ix
	}
	return a.Data[off]
}

var (
	npyMagic  = []byte("\x93NUMPY")
	descrRe   = regexp.MustCompile(`'descr':\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// Read loads a .npy file, widening elements to float64.
func Read(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dtype, shape, err := readHeader(f, path)
	if err != nil {
		return nil, err
	}

	n := 1
	for _, d := range shape {
		n *= d
	}
	itemSize := dtype.ItemSize()
	raw := make([]byte, n*itemSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("reading %s payload: %w", path, err)
	}

	data := make([]float64, n)
	for i := 0; i < n; i++ {
		data[i] = dtype.Decode(raw[i*itemSize:])
	}
	return &Array{Shape: shape, Data: data}, nil
}

// readHeader parses the magic, version and header dict, leaving r
// positioned at the first payload byte.
func readHeader(r io.Reader, path string) (Dtype, []int, error) {
	pre := make([]byte, 8)
	if _, err := io.ReadFull(r, pre); err != nil {
		return "", nil, fmt.Errorf("reading %s header: %w", path, err)
	}
	if string(pre[:6]) != string(npyMagic) {
		return "", nil, fmt.Errorf("%s is not a .npy file", path)
	}
	major := pre[6]

	var headerLen int
	switch major {
	case 1:
		b := make([]byte, 2)
		if _, err := io.ReadFull(r, b); err != nil {
			return "", nil, fmt.Errorf("reading %s header length: %w", path, err)
		}
		headerLen = int(binary.LittleEndian.Uint16(b))
	case 2, 3:
		b := make([]byte, 4)
		if _, err := io.ReadFull(r, b); err != nil {
			return "", nil, fmt.Errorf("reading %s header length: %w", path, err)
		}
		headerLen = int(binary.LittleEndian.Uint32(b))
	default:
		return "", nil, fmt.Errorf("%s: unsupported .npy version %d", path, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return "", nil, fmt.Errorf("reading %s header dict: %w", path, err)
	}
	dict := string(header)

	m := descrRe.FindStringSubmatch(dict)
	if m == nil {
		return "", nil, fmt.Errorf("%s: header missing descr", path)
	}
	dtype, err := ParseDtype(m[1])
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}

	if m := fortranRe.FindStringSubmatch(dict); m == nil || m[1] != "False" {
		return "", nil, fmt.Errorf("%s: only C-order arrays are supported", path)
	}

	m = shapeRe.FindStringSubmatch(dict)
	if m == nil {
		return "", nil, fmt.Errorf("%s: header missing shape", path)
	}
	var shape []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return "", nil, fmt.Errorf("%s: bad shape entry %q", path, part)
		}
		shape = append(shape, d)
	}
	if shape == nil {
		shape = []int{} // zero-d scalar
	}
	return dtype, shape, nil
}

// ReadShape returns the dtype and shape of a .npy file without loading
// the payload.
func ReadShape(path string) (Dtype, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	return readHeader(f, path)
}

// Write stores data as a version 1.0 .npy file with dtype <f8.
func Write(path string, data []float64, shape ...int) error {
	return WriteDtype(path, Float64, data, shape...)
}

// WriteDtype stores data as a version 1.0 .npy file with the given dtype.
func WriteDtype(path string, dtype Dtype, data []float64, shape ...int) error {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("npyio: shape %v does not match %d elements", shape, len(data))
	}

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", dtype, shapeStr)

	// Pad so the payload starts on a 64-byte boundary, per the format spec.
	headerLen := len(dict) + 1
	total := 10 + headerLen
	if pad := total % 64; pad != 0 {
		headerLen += 64 - pad
	}
	header := make([]byte, headerLen)
	copy(header, dict)
	for i := len(dict); i < headerLen-1; i++ {
		header[i] = ' '
	}
	header[headerLen-1] = '\n'

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pre := make([]byte, 10)
	copy(pre, npyMagic)
	pre[6] = 1
	pre[7] = 0
	binary.LittleEndian.PutUint16(pre[8:], uint16(headerLen))
	if _, err := f.Write(pre); err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		return err
	}

	itemSize := dtype.ItemSize()
	raw := make([]byte, len(data)*itemSize)
	for i, v := range data {
		dtype.Encode(raw[i*itemSize:], v)
	}
	if _, err := f.Write(raw); err != nil {
		return err
	}
	return f.Close()
}

// WriteRaw stores data as a headerless flat binary (.mem) file of the
// given dtype, the format used for memory-mapped sample stores.
func WriteRaw(path string, dtype Dtype, data []float64) error {
	itemSize := dtype.ItemSize()
	raw := make([]byte, len(data)*itemSize)
	for i, v := range data {
		dtype.Encode(raw[i*itemSize:], v)
	}
	return os.WriteFile(path, raw, 0o644)
}
