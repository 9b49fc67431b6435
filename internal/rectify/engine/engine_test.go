package engine

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/arsf/maprectify/internal/rectify/dtype"
	"github.com/arsf/maprectify/internal/rectify/geomprim"
	"github.com/arsf/maprectify/internal/rectify/rasterio"
)

// writeBIL writes a band-major-per-row raster of the given values, one
// []float64 per row (already interleaved band-major-within-row, matching
// rasterio.Writer.WriteLine's contract).
func writeBIL(t *testing.T, path string, d dtype.DType, rows, cols, bands int, data [][]float64) {
	t.Helper()
	w, err := rasterio.OpenWriter(path, d, rows, cols, bands, nil)
	if err != nil {
		t.Fatalf("OpenWriter(%s): %v", path, err)
	}
	for _, row := range data {
		if err := w.WriteLine(row); err != nil {
			t.Fatalf("WriteLine: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestRunIdentityMap implements spec.md §8 scenario S1: a 3x3 IGM whose
// ground coordinates exactly match a unit-pixel output grid at (0,0)-(2,2)
// must reproduce the Level-1 band verbatim under nearest-neighbour.
func TestRunIdentityMap(t *testing.T) {
	dir := t.TempDir()
	igmPath := filepath.Join(dir, "igm.bil")
	lev1Path := filepath.Join(dir, "lev1.bil")
	outPath := filepath.Join(dir, "out.bil")

	// IGM: band 0 = X, band 1 = Y, 3 rows x 3 cols.
	xRows := [][]float64{
		{0, 1, 2},
		{0, 1, 2},
		{0, 1, 2},
	}
	yRows := [][]float64{
		{2, 2, 2},
		{1, 1, 1},
		{0, 0, 0},
	}
	igmData := make([][]float64, 3)
	for r := 0; r < 3; r++ {
		row := make([]float64, 6)
		for c := 0; c < 3; c++ {
			row[0*3+c] = xRows[r][c]
			row[1*3+c] = yRows[r][c]
		}
		igmData[r] = row
	}
	writeBIL(t, igmPath, dtype.F64, 3, 3, 2, igmData)

	lev1Data := [][]float64{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
	}
	writeBIL(t, lev1Path, dtype.U16, 3, 3, 1, lev1Data)

	// TLX/TLY are corners, CellCenter adds half a pixel: placing the
	// corner half a pixel outside the sample extent makes cell (r,c)'s
	// centre land exactly on IGM sample (r,c), avoiding an equidistant
	// tie among the four surrounding ground points.
	grid := geomprim.GridInfo{
		TLX: -0.5, TLY: 2.5,
		BRX: 2.5, BRY: -0.5,
		PixSizeX: 1, PixSizeY: 1,
		Rows: 3, Cols: 3,
	}

	p := Params{
		IGMPath: igmPath, Level1Path: lev1Path, OutputPath: outPath,
		Grid:               grid,
		BandPhysIdx:         []int{0},
		OutputDType:         dtype.U16,
		Interpolation:       Nearest,
		MaxInterpDistanceM:  10,
		IgnoreValue:         math.NaN(),
		NoData:              0,
		BufferBytes:         1 << 30,
		IgnoreDiskSpace:     true,
	}
	if err := Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := rasterio.Open(outPath)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	defer out.Close()

	want := [][]float64{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
	}
	for r := 0; r < 3; r++ {
		got, err := out.ReadBandLine(0, r)
		if err != nil {
			t.Fatalf("ReadBandLine(%d): %v", r, err)
		}
		for c := 0; c < 3; c++ {
			if got[c] != want[r][c] {
				t.Errorf("row %d col %d = %v, want %v", r, c, got[c], want[r][c])
			}
		}
	}
}

// TestRunIgnoreScanRowsExcludesSamples exercises --ignorescan (spec.md §6):
// a dropped IGM row must contribute no samples to any segment's spatial
// index, so cells that would only nearest-match it fall back to no_data.
func TestRunIgnoreScanRowsExcludesSamples(t *testing.T) {
	dir := t.TempDir()
	igmPath := filepath.Join(dir, "igm.bil")
	lev1Path := filepath.Join(dir, "lev1.bil")
	outPath := filepath.Join(dir, "out.bil")

	xRows := [][]float64{
		{0, 1, 2},
		{0, 1, 2},
		{0, 1, 2},
	}
	yRows := [][]float64{
		{2, 2, 2},
		{1, 1, 1},
		{0, 0, 0},
	}
	igmData := make([][]float64, 3)
	for r := 0; r < 3; r++ {
		row := make([]float64, 6)
		for c := 0; c < 3; c++ {
			row[0*3+c] = xRows[r][c]
			row[1*3+c] = yRows[r][c]
		}
		igmData[r] = row
	}
	writeBIL(t, igmPath, dtype.F64, 3, 3, 2, igmData)

	lev1Data := [][]float64{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
	}
	writeBIL(t, lev1Path, dtype.U16, 3, 3, 1, lev1Data)

	grid := geomprim.GridInfo{
		TLX: -0.5, TLY: 2.5,
		BRX: 2.5, BRY: -0.5,
		PixSizeX: 1, PixSizeY: 1,
		Rows: 3, Cols: 3,
	}

	noData := 255.0
	p := Params{
		IGMPath: igmPath, Level1Path: lev1Path, OutputPath: outPath,
		Grid:               grid,
		BandPhysIdx:         []int{0},
		OutputDType:         dtype.U16,
		Interpolation:       Nearest,
		MaxInterpDistanceM:  0.1, // exact match only, so a dropped row has no fallback
		IgnoreValue:         math.NaN(),
		NoData:              noData,
		BufferBytes:         1 << 30,
		IgnoreDiskSpace:     true,
		IgnoreScanRows:      []int{1},
	}
	if err := Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := rasterio.Open(outPath)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	defer out.Close()

	got1, err := out.ReadBandLine(0, 1)
	if err != nil {
		t.Fatalf("ReadBandLine(1): %v", err)
	}
	for c := 0; c < 3; c++ {
		if got1[c] != noData {
			t.Errorf("dropped row: col %d = %v, want no_data %v", c, got1[c], noData)
		}
	}

	got0, err := out.ReadBandLine(0, 0)
	if err != nil {
		t.Fatalf("ReadBandLine(0): %v", err)
	}
	want0 := []float64{0, 1, 2}
	for c := 0; c < 3; c++ {
		if got0[c] != want0[c] {
			t.Errorf("row 0: col %d = %v, want %v", c, got0[c], want0[c])
		}
	}
}

// TestRunOutsideAreaSkip implements spec.md §8 scenario S5: an output
// area that does not intersect the IGM's extent at all must produce a
// file entirely filled with no_data, with every segment skipped.
func TestRunOutsideAreaSkip(t *testing.T) {
	dir := t.TempDir()
	igmPath := filepath.Join(dir, "igm.bil")
	lev1Path := filepath.Join(dir, "lev1.bil")
	outPath := filepath.Join(dir, "out.bil")

	igmData := make([][]float64, 10)
	lev1Data := make([][]float64, 10)
	for r := 0; r < 10; r++ {
		row := make([]float64, 20)
		l1 := make([]float64, 10)
		for c := 0; c < 10; c++ {
			row[0*10+c] = float64(c)
			row[1*10+c] = float64(r)
			l1[c] = float64(r*10 + c)
		}
		igmData[r] = row
		lev1Data[r] = l1
	}
	writeBIL(t, igmPath, dtype.F64, 10, 10, 2, igmData)
	writeBIL(t, lev1Path, dtype.U16, 10, 10, 1, lev1Data)

	grid := geomprim.GridInfo{
		TLX: 1000, TLY: 1100,
		BRX: 1100, BRY: 1000,
		PixSizeX: 1, PixSizeY: 1,
		Rows: 100, Cols: 100,
	}

	noData := -1.0
	p := Params{
		IGMPath: igmPath, Level1Path: lev1Path, OutputPath: outPath,
		Grid:               grid,
		BandPhysIdx:         []int{0},
		OutputDType:         dtype.F32,
		Interpolation:       Nearest,
		MaxInterpDistanceM:  10,
		IgnoreValue:         math.NaN(),
		NoData:              noData,
		BufferBytes:         1 << 30,
		IgnoreDiskSpace:     true,
	}
	if err := Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := rasterio.Open(outPath)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	defer out.Close()

	for r := 0; r < 100; r++ {
		got, err := out.ReadBandLine(0, r)
		if err != nil {
			t.Fatalf("ReadBandLine(%d): %v", r, err)
		}
		for c := 0; c < 100; c++ {
			if got[c] != noData {
				t.Errorf("row %d col %d = %v, want no_data %v", r, c, got[c], noData)
			}
		}
	}
}
