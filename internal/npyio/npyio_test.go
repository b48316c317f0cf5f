package npyio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDtype(t *testing.T) {
	cases := []struct {
		in   string
		want Dtype
		ok   bool
	}{
		{"float64", Float64, true},
		{"<f8", Float64, true},
		{"float32", Float32, true},
		{"<f4", Float32, true},
		{"int16", Int16, true},
		{"uint8", Uint8, true},
		{"complex128", "", false},
		{">f8", "", false},
	}
	for _, c := range cases {
		got, err := ParseDtype(c.in)
		if c.ok && err != nil {
			t.Errorf("ParseDtype(%q) unexpected error: %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseDtype(%q) expected error, got %v", c.in, got)
		}
		if c.ok && got != c.want {
			t.Errorf("ParseDtype(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, dtype := range []Dtype{Float64, Float32, Int64, Int32, Int16, Uint8} {
		t.Run(string(dtype), func(t *testing.T) {
			path := filepath.Join(dir, "rt_"+string(dtype[1:])+".npy")
			data := []float64{0, 1, 2, 3, 4, 5}
			if err := WriteDtype(path, dtype, data, 2, 3); err != nil {
				t.Fatalf("WriteDtype: %v", err)
			}

			arr, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if diff := cmp.Diff([]int{2, 3}, arr.Shape); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(data, arr.Data); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteReadNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nan.npy")
	data := []float64{1, math.NaN(), 3}
	if err := Write(path, data, 3); err != nil {
		t.Fatalf("Write: %v", err)
	}
	arr, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !math.IsNaN(arr.Data[1]) {
		t.Errorf("expected NaN at index 1, got %v", arr.Data[1])
	}
	if arr.Data[0] != 1 || arr.Data[2] != 3 {
		t.Errorf("neighbors corrupted: %v", arr.Data)
	}
}

func TestHeaderAlignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "align.npy")
	if err := Write(path, []float64{1}, 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	headerLen := int(raw[8]) | int(raw[9])<<8
	if (10+headerLen)%64 != 0 {
		t.Errorf("payload offset %d not 64-byte aligned", 10+headerLen)
	}
	if raw[10+headerLen-1] != '\n' {
		t.Errorf("header not newline terminated")
	}
}

func TestReadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shape.npy")
	if err := WriteDtype(path, Float32, make([]float64, 12), 3, 4); err != nil {
		t.Fatal(err)
	}
	dtype, shape, err := ReadShape(path)
	if err != nil {
		t.Fatalf("ReadShape: %v", err)
	}
	if dtype != Float32 {
		t.Errorf("dtype = %q, want %q", dtype, Float32)
	}
	if diff := cmp.Diff([]int{3, 4}, shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func Test1DShapeHasTrailingComma(t *testing.T) {
	// NumPy writes 1-tuples as "(6,)"; make sure our reader accepts our
	// writer's output and the shape survives.
	path := filepath.Join(t.TempDir(), "vec.npy")
	if err := Write(path, []float64{0, 1, 2, 3, 4, 5}, 6); err != nil {
		t.Fatal(err)
	}
	arr, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(arr.Shape) != 1 || arr.Shape[0] != 6 {
		t.Errorf("shape = %v, want [6]", arr.Shape)
	}
}

func TestAt(t *testing.T) {
	arr := &Array{Shape: []int{2, 3}, Data: []float64{0, 1, 2, 3, 4, 5}}
	if got := arr.At(1, 2); got != 5 {
		t.Errorf("At(1,2) = %v, want 5", got)
	}
	if got := arr.At(0, 1); got != 1 {
		t.Errorf("At(0,1) = %v, want 1", got)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.npy")
	if err := os.WriteFile(path, []byte("not an npy file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Error("expected error reading non-npy file")
	}
}

func TestWriteRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.mem")
	data := []float64{1.5, -2, 7}
	if err := WriteRaw(path, Float32, data); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3*Float32.ItemSize() {
		t.Fatalf("raw length = %d, want %d", len(raw), 3*Float32.ItemSize())
	}
	for i, want := range data {
		got := Float32.Decode(raw[i*4:])
		if got != want {
			t.Errorf("element %d = %v, want %v", i, got, want)
		}
	}
}
