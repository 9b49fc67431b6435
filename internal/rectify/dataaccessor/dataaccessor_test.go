package dataaccessor

import (
	"path/filepath"
	"testing"

	"github.com/arsf/maprectify/internal/rectify/dtype"
	"github.com/arsf/maprectify/internal/rectify/rasterio"
)

func writeFixture(t *testing.T) rasterio.Reader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "l1.bil")
	w, err := rasterio.OpenWriter(path, dtype.F32, 4, 3, 2, nil)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	for r := 0; r < 4; r++ {
		row := make([]float64, 3*2)
		for i := range row {
			row[i] = float64(1000 + r*10 + i)
		}
		if err := w.WriteLine(row); err != nil {
			t.Fatalf("WriteLine: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := rasterio.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestAccessorBlockHit(t *testing.T) {
	file := writeFixture(t)
	defer file.Close()

	block := &Block{
		FirstRow: 1,
		NRows:    2,
		BandMap:  []int{0, 1},
		Data: [][][]float64{
			{{100, 101, 102}, {200, 201, 202}},
			{{900, 901, 902}, {910, 911, 912}},
		},
	}
	a := New(block, file)

	v, err := a.Get(0, 1, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 102 {
		t.Errorf("Get(block hit) = %v, want 102", v)
	}
}

func TestAccessorFallThroughToFile(t *testing.T) {
	file := writeFixture(t)
	defer file.Close()

	block := &Block{FirstRow: 1, NRows: 2, BandMap: []int{0}}
	a := New(block, file)

	// row 0 is outside the block's [1,3) range: must fall through to file.
	v, err := a.Get(0, 0, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 1000 {
		t.Errorf("Get(fall-through row) = %v, want 1000", v)
	}

	// band 1 is not in this block's BandMap: must fall through to file.
	v, err = a.Get(1, 1, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 1013 {
		t.Errorf("Get(fall-through band) = %v, want 1013", v)
	}
}

func TestAccessorNilBlock(t *testing.T) {
	file := writeFixture(t)
	defer file.Close()

	a := New(nil, file)
	v, err := a.Get(0, 2, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 1021 {
		t.Errorf("Get(nil block) = %v, want 1021", v)
	}
}
