package rasterio

import (
	"path/filepath"
	"testing"

	"github.com/arsf/maprectify/internal/rectify/dtype"
)

func TestBilWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.bil")

	const rows, cols, bands = 3, 4, 2
	w, err := OpenWriter(path, dtype.F32, rows, cols, bands, map[string]string{
		"data ignore value": "-9999",
	})
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	for r := 0; r < rows; r++ {
		row := make([]float64, cols*bands)
		for i := range row {
			row[i] = float64(r*100 + i)
		}
		if err := w.WriteLine(row); err != nil {
			t.Fatalf("WriteLine row %d: %v", r, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Rows() != rows || r.Cols() != cols || r.Bands() != bands {
		t.Fatalf("shape = (%d,%d,%d), want (%d,%d,%d)", r.Rows(), r.Cols(), r.Bands(), rows, cols, bands)
	}
	if r.DType() != dtype.F32 {
		t.Errorf("DType() = %v, want F32", r.DType())
	}
	if got := r.Header()["data ignore value"]; got != "-9999" {
		t.Errorf("header data ignore value = %q, want -9999", got)
	}

	for rowIdx := 0; rowIdx < rows; rowIdx++ {
		for b := 0; b < bands; b++ {
			line, err := r.ReadBandLine(b, rowIdx)
			if err != nil {
				t.Fatalf("ReadBandLine(%d,%d): %v", b, rowIdx, err)
			}
			for c := 0; c < cols; c++ {
				want := float64(rowIdx*100 + b*cols + c)
				if line[c] != want {
					t.Errorf("ReadBandLine(%d,%d)[%d] = %v, want %v", b, rowIdx, c, line[c], want)
				}
				cell, err := r.ReadCell(b, rowIdx, c)
				if err != nil {
					t.Fatalf("ReadCell: %v", err)
				}
				if cell != want {
					t.Errorf("ReadCell(%d,%d,%d) = %v, want %v", b, rowIdx, c, cell, want)
				}
			}
		}
	}
}

func TestBilWriteRangeOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bil")

	w, err := OpenWriter(path, dtype.U16, 2, 5, 1, nil)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if err := w.WriteLine(make([]float64, 5)); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := w.WriteRange(0, 0, 1, 3, []float64{7, 8}); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	if err := w.WriteLine(make([]float64, 5)); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	line, err := r.ReadBandLine(0, 0)
	if err != nil {
		t.Fatalf("ReadBandLine: %v", err)
	}
	want := []float64{0, 7, 8, 0, 0}
	for i, v := range want {
		if line[i] != v {
			t.Errorf("line[%d] = %v, want %v", i, line[i], v)
		}
	}
}

func TestBilOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.bil")
	w, err := OpenWriter(path, dtype.U8, 1, 1, 1, nil)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if err := w.WriteLine([]float64{1}); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if _, err := r.ReadCell(0, 5, 0); err == nil {
		t.Error("ReadCell with out-of-range row: want error, got nil")
	}
}
