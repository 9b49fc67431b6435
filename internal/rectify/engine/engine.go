// Package engine runs the output grid row-by-row (spec.md §4.7/§5, the
// "Map engine" leaf of §2's component table): for each planned segment it
// builds a fresh TreeGrid from the segment's IGM slice, walks the
// segment's own output rows through the swath outline's column window,
// dispatches each covered cell to the selected interpolation kernel, and
// writes the assembled row to the Level-3 raster — filling any rows a
// segment does not cover with no_data, in strictly increasing output-row
// order.
//
// Grounded on original_source/src/level3grid.cpp's row loop (per-segment
// TreeGrid build, per-row outline window, per-cell interpolator dispatch),
// adapted onto internal/rectify/segment, treegrid, outline and interp.
package engine

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/arsf/maprectify/internal/rectify/dtype"
	"github.com/arsf/maprectify/internal/rectify/geomprim"
	"github.com/arsf/maprectify/internal/rectify/interp"
	"github.com/arsf/maprectify/internal/rectify/rasterio"
	"github.com/arsf/maprectify/internal/rectify/rectifyerr"
	"github.com/arsf/maprectify/internal/rectify/segment"
	"github.com/arsf/maprectify/internal/rectify/treegrid"
	"github.com/arsf/maprectify/internal/rectify/warnonce"
)

// Interpolation names the five kernels of spec.md §4.6.
type Interpolation int

const (
	Nearest Interpolation = iota
	// Bilinear is the default "bilinear" of spec.md §4.6.4: a quad drawn
	// from a four-quadrant spatial-index query.
	Bilinear
	// BilinearLev1 is spec.md §4.6.3: a quad built from a single Level-1
	// pixel's own row/column neighbours.
	BilinearLev1
	IDW
	Cubic
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	case BilinearLev1:
		return "bilinearlev1"
	case IDW:
		return "idw"
	case Cubic:
		return "cubic"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// Params is everything one invocation needs: resolved CLI options plus
// the input raster paths. Run owns the lifetime of every reader/writer it
// opens.
type Params struct {
	IGMPath, Level1Path string
	OutputPath          string
	RowColMapPath       string // optional; honoured only under Nearest

	Grid        geomprim.GridInfo // the requested Level-3 output grid
	BandPhysIdx []int             // physical Level-1 band per logical output band
	OutputDType dtype.DType

	Interpolation      Interpolation
	IDWCount           int // k for IDW
	MaxInterpDistanceM float64

	IgnoreValue float64 // math.NaN() encodes "--ignorevalue NONE": never matches
	NoData      float64

	// IgnoreScanRows lists IGM/Level-1 row numbers (0-based, referenced to
	// the start of the flight line) to exclude from the spatial index
	// entirely, for scans known to be dropped/corrupt in the input data.
	IgnoreScanRows []int

	BufferBytes    uint64
	SegmentOverlap int // O; NewPlan defaults <= 0 to 10
	Ellipsoid      geomprim.Ellipsoid

	IgnoreDiskSpace bool

	OutputHeaderExtra    map[string]string
	RowColMapHeaderExtra map[string]string

	Warner *warnonce.Warner

	// Progress, if set, is called after every output row (real or
	// no_data) is written, in increasing row order — the hook
	// internal/rectify/progressui drives its bar from.
	Progress func(row, totalRows int)
}

// Run executes one full invocation per spec.md §2's data flow: open
// inputs, plan segments, then for each segment build its index and emit
// its rows, filling uncovered rows with no_data.
func Run(p Params) error {
	if p.Warner == nil {
		p.Warner = warnonce.New()
	}
	if p.IDWCount <= 0 {
		p.IDWCount = 1
	}
	if p.Ellipsoid == (geomprim.Ellipsoid{}) {
		p.Ellipsoid = geomprim.WGS84
	}

	igmFile, err := rasterio.Open(p.IGMPath)
	if err != nil {
		return err
	}
	defer igmFile.Close()
	level1File, err := rasterio.Open(p.Level1Path)
	if err != nil {
		return err
	}
	defer level1File.Close()

	if igmFile.Rows() != level1File.Rows() || igmFile.Cols() != level1File.Cols() {
		return rectifyerr.NewConfigError("IGM shape (%d,%d) does not match Level-1 shape (%d,%d)",
			igmFile.Rows(), igmFile.Cols(), level1File.Rows(), level1File.Cols())
	}
	if igmFile.Bands() < 2 {
		return rectifyerr.NewConfigError("IGM raster needs at least 2 bands (X, Y), got %d", igmFile.Bands())
	}
	for _, phys := range p.BandPhysIdx {
		if phys < 0 || phys >= level1File.Bands() {
			return rectifyerr.NewConfigError("band index %d out of range [0,%d)", phys, level1File.Bands())
		}
	}

	wantRowColMap := p.RowColMapPath != "" && p.Interpolation == Nearest

	requiredBytes := uint64(p.OutputDType.Size()) * uint64(len(p.BandPhysIdx)) * uint64(p.Grid.Rows) * uint64(p.Grid.Cols)
	if wantRowColMap {
		requiredBytes += uint64(dtype.I32.Size()) * 2 * uint64(p.Grid.Rows) * uint64(p.Grid.Cols)
	}
	if !p.IgnoreDiskSpace {
		if err := checkDiskSpace(p.OutputPath, requiredBytes); err != nil {
			return err
		}
	}

	writer, err := rasterio.OpenWriter(p.OutputPath, p.OutputDType, p.Grid.Rows, p.Grid.Cols, len(p.BandPhysIdx), p.OutputHeaderExtra)
	if err != nil {
		return err
	}
	defer writer.Close()

	var rcWriter rasterio.Writer
	if wantRowColMap {
		rcWriter, err = rasterio.OpenWriter(p.RowColMapPath, dtype.I32, p.Grid.Rows, p.Grid.Cols, 2, p.RowColMapHeaderExtra)
		if err != nil {
			return err
		}
		defer rcWriter.Close()
	}

	treeGridSizeFallback := parseTreeGridSize(igmFile.Header())

	plan := segment.NewPlan(len(p.BandPhysIdx), igmFile.Cols(), igmFile.Rows(), level1File.DType(), p.BufferBytes, p.SegmentOverlap)
	region := &segment.Region{MinX: p.Grid.TLX, MaxX: p.Grid.BRX, MinY: p.Grid.BRY, MaxY: p.Grid.TLY}
	emit := newRowEmitter(writer, rcWriter, p.Grid.Cols, len(p.BandPhysIdx), p.NoData, p.OutputDType)
	emit.progress = p.Progress
	emit.totalRows = p.Grid.Rows

	for i := 0; i < len(plan.Bounds)-1; i++ {
		firstRow, lastRow := plan.Bounds[i], plan.Bounds[i+1]
		seg, err := segment.Build(igmFile, level1File, firstRow, lastRow, plan, p.Grid, p.BandPhysIdx, p.IgnoreValue, region)
		if err == segment.ErrOutsideRegion {
			continue
		}
		if err != nil {
			return err
		}

		grid, err := buildTreeGrid(seg, igmFile.Cols(), p, treeGridSizeFallback)
		if err != nil {
			return err
		}

		rowOffset := int(math.Round((p.Grid.TLY - seg.Grid.TLY) / p.Grid.PixSizeY))
		colOffset := int(math.Round((seg.Grid.TLX - p.Grid.TLX) / p.Grid.PixSizeX))

		bands := &interp.Bands{
			Accessor:        seg.Level1Accessor,
			BandPhysIdx:     p.BandPhysIdx,
			IgnoreValue:     p.IgnoreValue,
			MaxInterpDistSq: p.MaxInterpDistanceM * p.MaxInterpDistanceM,
			Warner:          p.Warner,
		}

		for localRow := 0; localRow < seg.Grid.Rows; localRow++ {
			globalRow := rowOffset + localRow
			if globalRow < 0 || globalRow >= p.Grid.Rows {
				continue
			}
			if err := emit.advanceTo(globalRow); err != nil {
				return err
			}
			if emit.cursor != globalRow {
				continue // already emitted by an earlier, overlapping segment
			}
			rowVals, rcVals := computeRow(seg, grid, bands, p, globalRow, localRow, colOffset, igmFile.Cols(), wantRowColMap)
			if err := emit.emitRow(rowVals, rcVals); err != nil {
				return err
			}
		}
	}
	return emit.advanceTo(p.Grid.Rows)
}

// buildTreeGrid inserts every valid IGM ground point in the segment's
// loaded block (overlap included, per spec.md §4.3's "populate the index
// with the slice"). Mean cell spacing comes from the IGM's own along/
// across-track ground-sample density at this segment (estimateMeanSpacing,
// grounded on original_source/src/basic_igm_worker.cpp's GetPixelSize),
// falling back to the IGM header's TreeGridSize field and, failing that,
// to the output pixel size — matching TreeGrid.cpp's IGMTreeGrid
// constructor's GetPixelSize -> TreeGridSize fallback chain.
func buildTreeGrid(seg *segment.LineSegment, igmCols int, p Params, treeGridSizeFallback float64) (*treegrid.Grid, error) {
	var metric treegrid.Metric
	if p.Grid.Geographic {
		metric = treegrid.GeodesicMetric(p.Ellipsoid)
	} else {
		metric = treegrid.PlanarMetric()
	}

	dx, dy, ok := estimateMeanSpacing(seg, igmCols, p.IgnoreValue)
	switch {
	case ok:
	case treeGridSizeFallback > 0:
		dx, dy = treeGridSizeFallback, treeGridSizeFallback
		p.Warner.Warn("treegrid-spacing-header-fallback",
			"could not estimate IGM sample spacing for rows %d-%d; using header TreeGridSize=%g", seg.LoadFirst, seg.LoadEnd, treeGridSizeFallback)
	default:
		dx, dy = p.Grid.PixSizeX, p.Grid.PixSizeY
		p.Warner.Warn("treegrid-spacing-output-fallback",
			"could not estimate IGM sample spacing for rows %d-%d and no header TreeGridSize was given; using the output pixel size (%g,%g)", seg.LoadFirst, seg.LoadEnd, dx, dy)
	}

	grid, err := treegrid.New(seg.Grid.TLX, seg.Grid.TLY, seg.Grid.BRX, seg.Grid.BRY, dx, dy, metric)
	if err != nil {
		return nil, rectifyerr.WrapConfigError("building segment spatial index", err)
	}

	dropRows := make(map[int]bool, len(p.IgnoreScanRows))
	for _, r := range p.IgnoreScanRows {
		dropRows[r] = true
	}

	var samples []treegrid.Sample
	for row := seg.LoadFirst; row < seg.LoadEnd; row++ {
		if dropRows[row] {
			continue
		}
		for col := 0; col < igmCols; col++ {
			x, errX := seg.IGMAccessor.Get(0, row, col)
			y, errY := seg.IGMAccessor.Get(1, row, col)
			if errX != nil || errY != nil || x == p.IgnoreValue || y == p.IgnoreValue {
				continue
			}
			samples = append(samples, treegrid.Sample{IgmRow: row, IgmCol: col, X: x, Y: y})
		}
	}
	grid.Insert(samples)
	return grid, nil
}

// estimateMeanSpacing approximates the IGM's own ground-sample spacing at
// the segment's centre column, the way original_source/src/
// basic_igm_worker.cpp's GetPixelSize does: for each pair of consecutive
// loaded rows, take the along-track difference at the centre column and
// the across-track difference to its neighbour column, on both the X and
// Y ground axes. meanAlong/meanAcross (GetPixelSize's mean_al/mean_ac)
// gate validity; dx/dy (its pixsize[3]/pixsize[6]) are the mean magnitude
// of each ground axis's own along+across differences. Returns ok=false
// (GetPixelSize's BadPixelSizeCalculation) when no valid row pair is found
// or either gating sum is zero.
func estimateMeanSpacing(seg *segment.LineSegment, igmCols int, ignoreVal float64) (dx, dy float64, ok bool) {
	if igmCols < 2 || seg.LoadEnd-seg.LoadFirst < 2 {
		return 0, 0, false
	}
	center := igmCols / 2
	neighbour := center - 1
	if center == 0 {
		neighbour = center + 1
	}

	var meanAlong, meanAcross, emean, nmean float64
	var n int
	for row := seg.LoadFirst; row < seg.LoadEnd-1; row++ {
		x0, errX0 := seg.IGMAccessor.Get(0, row, center)
		y0, errY0 := seg.IGMAccessor.Get(1, row, center)
		x1, errX1 := seg.IGMAccessor.Get(0, row+1, center)
		y1, errY1 := seg.IGMAccessor.Get(1, row+1, center)
		xn, errXn := seg.IGMAccessor.Get(0, row+1, neighbour)
		yn, errYn := seg.IGMAccessor.Get(1, row+1, neighbour)
		if errX0 != nil || errY0 != nil || errX1 != nil || errY1 != nil || errXn != nil || errYn != nil {
			continue
		}
		if x0 == ignoreVal || y0 == ignoreVal || x1 == ignoreVal || y1 == ignoreVal || xn == ignoreVal || yn == ignoreVal {
			continue
		}
		diffEal, diffNal := x1-x0, y1-y0
		diffEac, diffNac := x1-xn, y1-yn
		meanAlong += math.Hypot(diffEal, diffNal)
		meanAcross += math.Hypot(diffEac, diffNac)
		emean += math.Hypot(diffEal, diffEac)
		nmean += math.Hypot(diffNal, diffNac)
		n++
	}
	if n == 0 || meanAlong == 0 || meanAcross == 0 {
		return 0, 0, false
	}
	return emean / float64(n), nmean / float64(n), true
}

// parseTreeGridSize reads the IGM header's TreeGridSize field, the
// fallback TreeGrid.cpp's IGMTreeGrid constructor uses when GetPixelSize
// fails. readHeader lowercases every field key, so the lookup key is
// "treegridsize" even though writeHeader emits the mixed-case name.
func parseTreeGridSize(header map[string]string) float64 {
	v, ok := header["treegridsize"]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return 0
	}
	return f
}

// computeRow fills one output row's worth of band values (and, under
// nearest-neighbour, the row/col map) for the columns the segment's
// outline says overlie flight-line data.
func computeRow(seg *segment.LineSegment, grid *treegrid.Grid, bands *interp.Bands, p Params, globalRow, localRow, colOffset, igmCols int, wantRowColMap bool) ([]float64, []float64) {
	cols := p.Grid.Cols
	nb := len(p.BandPhysIdx)
	rowVals := make([]float64, cols*nb)
	for i := range rowVals {
		rowVals[i] = p.NoData
	}
	var rcVals []float64
	if wantRowColMap {
		rcVals = make([]float64, cols*2)
		for i := range rcVals {
			rcVals[i] = -1
		}
	}

	colLo, colHi := seg.Outline.RowWindow(localRow)
	if colHi < colLo {
		return rowVals, rcVals // empty window: spec.md §8 invariant 9
	}

	maxDist := p.MaxInterpDistanceM
	for localCol := colLo; localCol <= colHi; localCol++ {
		globalCol := colOffset + localCol
		if globalCol < 0 || globalCol >= cols {
			continue
		}
		centre := p.Grid.CellCenter(globalRow, globalCol)
		x, y := centre.X(), centre.Y()

		var vals []float64
		switch p.Interpolation {
		case Nearest:
			first := func(band int) []interp.Candidate {
				return queryNearest(grid, seg, x, y, maxDist, band, p.IgnoreValue)
			}
			if wantRowColMap {
				if cand := first(-1); len(cand) > 0 {
					rcVals[0*cols+globalCol] = float64(cand[0].IgmRow)
					rcVals[1*cols+globalCol] = float64(cand[0].IgmCol)
				}
			}
			vals = interp.Nearest(bands, first, p.NoData)
		case IDW:
			query := func(band int) []interp.Candidate {
				return queryKNearest(grid, seg, x, y, p.IDWCount, maxDist, band, p.IgnoreValue)
			}
			vals = interp.IDW(bands, query, p.NoData)
		case Bilinear:
			vals = bilinearLev3(grid, seg, x, y, p.BandPhysIdx, p.IgnoreValue, maxDist, p.NoData)
		case BilinearLev1:
			vals = bilinearLev1(grid, seg, x, y, p.BandPhysIdx, p.IgnoreValue, maxDist, p.NoData, igmCols)
		case Cubic:
			vals = cubic(grid, seg, x, y, p.BandPhysIdx, p.IgnoreValue, maxDist, p.NoData, p.Warner)
		}

		for bi, v := range vals {
			rowVals[bi*cols+globalCol] = v
		}
	}
	return rowVals, rcVals
}

func queryNearest(grid *treegrid.Grid, seg *segment.LineSegment, x, y, maxDist float64, band int, ignoreVal float64) []interp.Candidate {
	var acc treegrid.AccessorFunc
	if band >= 0 {
		acc = seg.Level1Accessor.Get
	}
	return toInterpCandidates(grid.KNearest(x, y, 1, maxDist, band, ignoreVal, acc))
}

func queryKNearest(grid *treegrid.Grid, seg *segment.LineSegment, x, y float64, k int, maxDist float64, band int, ignoreVal float64) []interp.Candidate {
	var acc treegrid.AccessorFunc
	if band >= 0 {
		acc = seg.Level1Accessor.Get
	}
	return toInterpCandidates(grid.KNearest(x, y, k, maxDist, band, ignoreVal, acc))
}

func toInterpCandidates(cs []treegrid.Candidate) []interp.Candidate {
	out := make([]interp.Candidate, len(cs))
	for i, c := range cs {
		out[i] = interp.Candidate{
			Point:  interp.Point{IgmRow: c.IgmRow, IgmCol: c.IgmCol, X: c.X, Y: c.Y},
			DistSq: c.DistSq,
		}
	}
	return out
}

// bilinearLev3 implements spec.md §4.6.4: the default "bilinear", a quad
// of four spatial-index neighbours (one per quadrant) around the cell.
func bilinearLev3(grid *treegrid.Grid, seg *segment.LineSegment, x, y float64, bandPhysIdx []int, ignoreVal, maxDist, noData float64) []float64 {
	out := make([]float64, len(bandPhysIdx))
	buildQuad := func(band int) (interp.Quad, bool) {
		var acc treegrid.AccessorFunc
		if band >= 0 {
			acc = seg.Level1Accessor.Get
		}
		qr := grid.Quad(x, y, 1, maxDist, band, ignoreVal, acc)
		if !qr.Complete(1) {
			return interp.Quad{}, false
		}
		toPoint := func(c treegrid.Candidate) interp.Point {
			return interp.Point{IgmRow: c.IgmRow, IgmCol: c.IgmCol, X: c.X, Y: c.Y}
		}
		return interp.Quad{P: toPoint(qr.UL[0]), Q: toPoint(qr.UR[0]), R: toPoint(qr.BL[0]), S: toPoint(qr.BR[0])}, true
	}
	base, ok := buildQuad(-1)
	if !ok {
		for i := range out {
			out[i] = noData
		}
		return out
	}
	for i, phys := range bandPhysIdx {
		get := func(ph, row, col int) (float64, bool) {
			v, err := seg.Level1Accessor.Get(ph, row, col)
			if err != nil || v == ignoreVal {
				return 0, false
			}
			return v, true
		}
		v, ok := interp.BilinearQuad(base, x, y, phys, get)
		if !ok {
			if retryQuad, ok2 := buildQuad(phys); ok2 {
				v, ok = interp.BilinearQuad(retryQuad, x, y, phys, get)
			}
		}
		if !ok {
			out[i] = noData
			continue
		}
		out[i] = v
	}
	return out
}

// bilinearLev1 implements spec.md §4.6.3: the quad is built from the
// nearest sample's own row/column neighbours in the IGM rather than a
// spatial four-quadrant query.
func bilinearLev1(grid *treegrid.Grid, seg *segment.LineSegment, x, y float64, bandPhysIdx []int, ignoreVal, maxDist, noData float64, igmCols int) []float64 {
	out := make([]float64, len(bandPhysIdx))

	xyAt := func(row, col int) (float64, float64, bool) {
		gx, errX := seg.IGMAccessor.Get(0, row, col)
		gy, errY := seg.IGMAccessor.Get(1, row, col)
		if errX != nil || errY != nil || gx == ignoreVal || gy == ignoreVal {
			return 0, 0, false
		}
		return gx, gy, true
	}

	buildQuad := func(band int) (interp.Quad, bool) {
		var acc treegrid.AccessorFunc
		if band >= 0 {
			acc = seg.Level1Accessor.Get
		}
		nearest := grid.KNearest(x, y, 1, maxDist, band, ignoreVal, acc)
		if len(nearest) == 0 {
			return interp.Quad{}, false
		}
		s := nearest[0]
		if s.IgmCol == 0 || s.IgmCol == igmCols-1 {
			return interp.Quad{}, false // edge pixel: spec.md §4.6.3 aborts
		}

		rowNeighbour := func() (int, bool) {
			upX, upY, upOK := xyAt(s.IgmRow-1, s.IgmCol)
			dnX, dnY, dnOK := xyAt(s.IgmRow+1, s.IgmCol)
			switch {
			case upOK && dnOK:
				dUp := (upX-x)*(upX-x) + (upY-y)*(upY-y)
				dDn := (dnX-x)*(dnX-x) + (dnY-y)*(dnY-y)
				if dUp <= dDn {
					return s.IgmRow - 1, true
				}
				return s.IgmRow + 1, true
			case upOK:
				return s.IgmRow - 1, true
			case dnOK:
				return s.IgmRow + 1, true
			default:
				return 0, false
			}
		}
		colNeighbour := func() (int, bool) {
			lX, lY, lOK := xyAt(s.IgmRow, s.IgmCol-1)
			rX, rY, rOK := xyAt(s.IgmRow, s.IgmCol+1)
			switch {
			case lOK && rOK:
				dL := (lX-x)*(lX-x) + (lY-y)*(lY-y)
				dR := (rX-x)*(rX-x) + (rY-y)*(rY-y)
				if dL <= dR {
					return s.IgmCol - 1, true
				}
				return s.IgmCol + 1, true
			case lOK:
				return s.IgmCol - 1, true
			case rOK:
				return s.IgmCol + 1, true
			default:
				return 0, false
			}
		}

		r1, ok1 := rowNeighbour()
		c1, ok2 := colNeighbour()
		if !ok1 || !ok2 {
			return interp.Quad{}, false
		}
		mkPoint := func(row, col int) (interp.Point, bool) {
			gx, gy, ok := xyAt(row, col)
			if !ok {
				return interp.Point{}, false
			}
			return interp.Point{IgmRow: row, IgmCol: col, X: gx, Y: gy}, true
		}
		p00, ok00 := mkPoint(s.IgmRow, s.IgmCol)
		p01, ok01 := mkPoint(s.IgmRow, c1)
		p10, ok10 := mkPoint(r1, s.IgmCol)
		p11, ok11 := mkPoint(r1, c1)
		if !ok00 || !ok01 || !ok10 || !ok11 {
			return interp.Quad{}, false
		}
		return interp.Quad{P: p00, Q: p01, R: p10, S: p11}, true
	}

	base, ok := buildQuad(-1)
	if !ok {
		for i := range out {
			out[i] = noData
		}
		return out
	}
	for i, phys := range bandPhysIdx {
		get := func(ph, row, col int) (float64, bool) {
			v, err := seg.Level1Accessor.Get(ph, row, col)
			if err != nil || v == ignoreVal {
				return 0, false
			}
			return v, true
		}
		v, ok := interp.BilinearQuad(base, x, y, phys, get)
		if !ok {
			if retryQuad, ok2 := buildQuad(phys); ok2 {
				v, ok = interp.BilinearQuad(retryQuad, x, y, phys, get)
			}
		}
		if !ok {
			out[i] = noData
			continue
		}
		out[i] = v
	}
	return out
}

// cubic implements spec.md §4.6.5: a quad(4) query re-ordered into a 4×4
// grid, then two passes of Catmull-Rom cubic Hermite on a non-uniform
// abscissa.
func cubic(grid *treegrid.Grid, seg *segment.LineSegment, x, y float64, bandPhysIdx []int, ignoreVal, maxDist, noData float64, warner *warnonce.Warner) []float64 {
	out := make([]float64, len(bandPhysIdx))
	buildGrid := func(band int) ([4][4]interp.Point, bool) {
		var acc treegrid.AccessorFunc
		if band >= 0 {
			acc = seg.Level1Accessor.Get
		}
		qr := grid.Quad(x, y, 4, maxDist, band, ignoreVal, acc)
		if !qr.Complete(4) {
			var zero [4][4]interp.Point
			return zero, false
		}
		return interp.BicubicGrid4x4(
			toInterpCandidates(qr.UL), toInterpCandidates(qr.UR),
			toInterpCandidates(qr.BL), toInterpCandidates(qr.BR),
		)
	}

	base, ok := buildGrid(-1)
	if !ok {
		for i := range out {
			out[i] = noData
		}
		return out
	}

	for i, phys := range bandPhysIdx {
		v, ok := evalCubicBand(seg, base, x, y, phys, ignoreVal, warner)
		if !ok {
			if retryGrid, ok2 := buildGrid(phys); ok2 {
				v, ok = evalCubicBand(seg, retryGrid, x, y, phys, ignoreVal, warner)
			}
		}
		if !ok {
			out[i] = noData
			continue
		}
		out[i] = v
	}
	return out
}

func evalCubicBand(seg *segment.LineSegment, grid [4][4]interp.Point, x, y float64, phys int, ignoreVal float64, warner *warnonce.Warner) (float64, bool) {
	type rowResult struct{ y, v float64 }
	var rows [4]rowResult
	for i := 0; i < 4; i++ {
		var xv, yv [4]interp.CubicPoint
		for k := 0; k < 4; k++ {
			val, err := seg.Level1Accessor.Get(phys, grid[i][k].IgmRow, grid[i][k].IgmCol)
			if err != nil || val == ignoreVal {
				return 0, false
			}
			xv[k] = interp.CubicPoint{X: grid[i][k].X, V: val}
			yv[k] = interp.CubicPoint{X: grid[i][k].X, V: grid[i][k].Y}
		}
		rows[i] = rowResult{
			v: interp.CatmullRom(xv, x, warner),
			y: interp.CatmullRom(yv, x, warner),
		}
	}
	sort.Slice(rows[:], func(a, b int) bool { return rows[a].y < rows[b].y })
	var finalPts [4]interp.CubicPoint
	for i, r := range rows {
		finalPts[i] = interp.CubicPoint{X: r.y, V: r.v}
	}
	return interp.CatmullRom(finalPts, y, warner), true
}

// rowEmitter is the sequential writer side of spec.md §8 invariant 3
// ("no row is written twice"): every output row, real or no_data, goes
// through WriteLine exactly once, in increasing order.
type rowEmitter struct {
	w, rcw      rasterio.Writer
	cols, bands int
	noData      float64
	outputDType dtype.DType
	cursor      int
	totalRows   int
	progress    func(row, totalRows int)
}

func newRowEmitter(w, rcw rasterio.Writer, cols, bands int, noData float64, outputDType dtype.DType) *rowEmitter {
	return &rowEmitter{w: w, rcw: rcw, cols: cols, bands: bands, noData: noData, outputDType: outputDType}
}

func (e *rowEmitter) advanceTo(row int) error {
	if row <= e.cursor {
		return nil
	}
	nd := make([]float64, e.cols*e.bands)
	ndVal := dtype.FromFloat64(e.outputDType, e.noData)
	for i := range nd {
		nd[i] = ndVal
	}
	var rc []float64
	if e.rcw != nil {
		rc = make([]float64, e.cols*2)
		for i := range rc {
			rc[i] = -1
		}
	}
	for e.cursor < row {
		if err := e.w.WriteLine(nd); err != nil {
			return err
		}
		if e.rcw != nil {
			if err := e.rcw.WriteLine(rc); err != nil {
				return err
			}
		}
		e.cursor++
		if e.progress != nil {
			e.progress(e.cursor, e.totalRows)
		}
	}
	return nil
}

func (e *rowEmitter) emitRow(vals, rc []float64) error {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = dtype.FromFloat64(e.outputDType, v)
	}
	if err := e.w.WriteLine(out); err != nil {
		return err
	}
	if e.rcw != nil {
		rcOut := make([]float64, len(rc))
		for i, v := range rc {
			rcOut[i] = dtype.FromFloat64(dtype.I32, v)
		}
		if err := e.rcw.WriteLine(rcOut); err != nil {
			return err
		}
	}
	e.cursor++
	if e.progress != nil {
		e.progress(e.cursor, e.totalRows)
	}
	return nil
}

// checkDiskSpace verifies the filesystem holding path's directory has at
// least requiredBytes free (spec.md §7's DiskSpaceError). No third-party
// disk-space library appears anywhere in the pack; the nearest precedent
// is other_examples' wxingest-atmos checkDiskSpace, which reaches for
// syscall.Statfs directly, so this does too (see DESIGN.md).
func checkDiskSpace(path string, requiredBytes uint64) error {
	dir := filepath.Dir(path)
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return rectifyerr.NewIoError("statfs", dir, err)
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	if free < requiredBytes {
		return &rectifyerr.DiskSpaceError{RequiredBytes: requiredBytes, FreeBytes: free}
	}
	return nil
}
