// Package segment builds one RAM-resident streaming slice of a flight
// line at a time (spec.md §4.7): an IGM tile with lead/trail overlap, a
// matching Level-1 tile, a segment-local GridInfo snapped to the global
// output grid, and a SwathOutline for the slice. Grounded on
// original_source/src/linesegment.h's LineSegment constructor (the
// overlap/region-skip/OffsetToGrid sequence) adapted to the arsf/maprectify
// raster/grid/outline packages rather than the reference's templated
// Block<T>.
package segment

import (
	"fmt"
	"math"

	"github.com/arsf/maprectify/internal/rectify/dataaccessor"
	"github.com/arsf/maprectify/internal/rectify/dtype"
	"github.com/arsf/maprectify/internal/rectify/geomprim"
	"github.com/arsf/maprectify/internal/rectify/outline"
	"github.com/arsf/maprectify/internal/rectify/rasterio"
)

// Plan is the row partition computed once for the whole flight line
// (spec.md §4.7 "Segment count"): segment i covers rows
// [Bounds[i], Bounds[i+1]).
type Plan struct {
	Bounds  []int // len = n+1
	Overlap int   // O, default 10
}

// EstimateFullRAM computes bands·samples·lines·sizeof(T) +
// 2·samples·lines·sizeof(f64) — the whole-line RAM cost with no
// segmentation.
func EstimateFullRAM(bands, samples, lines int, t dtype.DType) uint64 {
	l1 := uint64(bands) * uint64(samples) * uint64(lines) * uint64(t.Size())
	igm := 2 * uint64(samples) * uint64(lines) * 8
	return l1 + igm
}

// NewPlan computes the segment count and row partition for a flight line of
// the given shape so that each segment's full RAM estimate is within
// budget bytes (spec.md §4.7). overlap is O (default 10 when <= 0).
func NewPlan(bands, samples, lines int, t dtype.DType, budgetBytes uint64, overlap int) Plan {
	if overlap <= 0 {
		overlap = 10
	}
	full := EstimateFullRAM(bands, samples, lines, t)
	n := 1
	if full > budgetBytes && budgetBytes > 0 {
		for uint64(n)*budgetBytes < full {
			n++
		}
	}
	if n > lines {
		n = lines
	}
	if n < 1 {
		n = 1
	}
	bounds := make([]int, n+1)
	for i := 0; i <= n; i++ {
		bounds[i] = i * lines / n
	}
	return Plan{Bounds: bounds, Overlap: overlap}
}

// Region is the user-requested output area, for the "skip on miss" check.
type Region struct {
	MinX, MaxX, MinY, MaxY float64
}

// ErrOutsideRegion is returned by Build when the segment's IGM extent
// does not intersect the requested output region — the segment must be
// skipped entirely (spec.md §4.7's "Skip on miss").
var ErrOutsideRegion = fmt.Errorf("segment: outside requested region")

// LineSegment is one RAM-resident slice of a flight line.
type LineSegment struct {
	FirstRow, LastRow int // the segment's own range (exclusive end), no overlap
	LoadFirst, LoadEnd int // range actually loaded, including lead/trail overlap
	Lead, Trail       int

	IGMAccessor    *dataaccessor.Accessor
	Level1Accessor *dataaccessor.Accessor

	Grid    geomprim.GridInfo
	Outline *outline.SwathOutline
}

// Build constructs one LineSegment covering rows [firstRow, lastRow) of
// the flight line, with lead/trail overlap from plan.Overlap, snapping
// its segment-local grid onto globalGrid (spec.md §4.7's "extend" snap),
// and returns ErrOutsideRegion if the slice's extent misses region.
func Build(igmFile, level1File rasterio.Reader, firstRow, lastRow int, plan Plan, globalGrid geomprim.GridInfo, bandPhysIdx []int, ignoreVal float64, region *Region) (*LineSegment, error) {
	lines := igmFile.Rows()
	samples := igmFile.Cols()

	lead := plan.Overlap
	if firstRow-lead < 0 {
		lead = firstRow
	}
	trail := plan.Overlap
	if lastRow+trail > lines {
		trail = lines - lastRow
	}
	loadFirst := firstRow - lead
	loadEnd := lastRow + trail

	igmBlock, minX, maxX, minY, maxY, err := loadIGMBlock(igmFile, loadFirst, loadEnd, firstRow, lastRow, samples, ignoreVal)
	if err != nil {
		return nil, err
	}

	if region != nil {
		if minY > region.MaxY || maxY < region.MinY || minX > region.MaxX || maxX < region.MinX {
			return nil, ErrOutsideRegion
		}
	}

	segGrid := geomprim.GridInfo{
		TLX: minX, TLY: maxY,
		BRX: maxX, BRY: minY,
		PixSizeX: globalGrid.PixSizeX, PixSizeY: globalGrid.PixSizeY,
		BandList:   globalGrid.BandList,
		Projection: globalGrid.Projection,
		Geographic: globalGrid.Geographic,
	}
	// TLX/TLY/BRX/BRY are the extreme sample coordinates themselves (not
	// padded corners), so the inclusive pixel count spanning them is the
	// number of pixel-size steps between the extremes, plus one for the
	// extremes themselves.
	segGrid.Cols = int(math.Round((segGrid.BRX-segGrid.TLX)/segGrid.PixSizeX)) + 1
	segGrid.Rows = int(math.Round((segGrid.TLY-segGrid.BRY)/segGrid.PixSizeY)) + 1
	segGrid = SnapToGlobal(segGrid, globalGrid)

	level1Block, err := loadLevel1Block(level1File, loadFirst, loadEnd, samples, bandPhysIdx)
	if err != nil {
		return nil, err
	}

	igmAcc := dataaccessor.New(igmBlock, igmFile)
	l1Acc := dataaccessor.New(level1Block, level1File)

	edges, err := buildOutlineEdges(igmAcc, loadFirst, loadEnd, firstRow-loadFirst, lastRow-firstRow, samples, segGrid, ignoreVal)
	if err != nil {
		return nil, err
	}

	return &LineSegment{
		FirstRow: firstRow, LastRow: lastRow,
		LoadFirst: loadFirst, LoadEnd: loadEnd,
		Lead: lead, Trail: trail,
		IGMAccessor: igmAcc, Level1Accessor: l1Acc,
		Grid:    segGrid,
		Outline: outline.New(edges, segGrid.Cols),
	}, nil
}

// SnapToGlobal shifts seg's top-left so that (seg.TLX - global.TLX) and
// (global.TLY - seg.TLY) are exact multiples of the pixel size, per
// spec.md §4.7, so segment-local columns/rows line up with an integer
// offset into the global grid. The snap direction is "extend": TLX only
// ever decreases and TLY only ever increases, each by less than one pixel;
// BRX/BRY and Rows/Cols are left unchanged.
func SnapToGlobal(seg, global geomprim.GridInfo) geomprim.GridInfo {
	const epsilon = 1e-9

	modX := math.Mod(seg.TLX-global.TLX, seg.PixSizeX)
	if math.Abs(modX) < epsilon || math.Abs(math.Abs(modX)-seg.PixSizeX) < epsilon {
		modX = 0
	}
	if modX != 0 {
		if modX > 0 {
			seg.TLX -= modX
		} else {
			seg.TLX -= (modX + seg.PixSizeX)
		}
	}

	modY := math.Mod(global.TLY-seg.TLY, seg.PixSizeY)
	if math.Abs(modY) < epsilon || math.Abs(math.Abs(modY)-seg.PixSizeY) < epsilon {
		modY = 0
	}
	if modY != 0 {
		if modY > 0 {
			seg.TLY += modY
		} else {
			seg.TLY += (modY + seg.PixSizeY)
		}
	}
	return seg
}

func loadIGMBlock(igmFile rasterio.Reader, loadFirst, loadEnd, firstRow, lastRow, samples int, ignoreVal float64) (block *dataaccessor.Block, minX, maxX, minY, maxY float64, err error) {
	nrows := loadEnd - loadFirst
	data := make([][][]float64, 2)
	data[0] = make([][]float64, nrows)
	data[1] = make([][]float64, nrows)
	for i := 0; i < nrows; i++ {
		xrow, err := igmFile.ReadBandLine(0, loadFirst+i)
		if err != nil {
			return nil, 0, 0, 0, 0, err
		}
		yrow, err := igmFile.ReadBandLine(1, loadFirst+i)
		if err != nil {
			return nil, 0, 0, 0, 0, err
		}
		data[0][i] = xrow
		data[1][i] = yrow
	}

	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64
	for i := firstRow - loadFirst; i < lastRow-loadFirst; i++ {
		for c := 0; c < samples; c++ {
			x, y := data[0][i][c], data[1][i][c]
			if x == ignoreVal || y == ignoreVal {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	block = &dataaccessor.Block{
		FirstRow: loadFirst, NRows: nrows,
		BandMap: []int{0, 1}, Data: data,
	}
	return block, minX, maxX, minY, maxY, nil
}

func loadLevel1Block(level1File rasterio.Reader, loadFirst, loadEnd, samples int, bandPhysIdx []int) (*dataaccessor.Block, error) {
	nrows := loadEnd - loadFirst
	data := make([][][]float64, len(bandPhysIdx))
	for bi, phys := range bandPhysIdx {
		data[bi] = make([][]float64, nrows)
		for i := 0; i < nrows; i++ {
			row, err := level1File.ReadBandLine(phys, loadFirst+i)
			if err != nil {
				return nil, err
			}
			data[bi][i] = row
		}
	}
	return &dataaccessor.Block{
		FirstRow: loadFirst, NRows: nrows,
		BandMap: bandPhysIdx, Data: data,
	}, nil
}

// buildOutlineEdges collects boundary pixels from the IGM slice's four
// edges (excluding the overlap), converts them to segment-grid row/col,
// and builds the outline edges, falling back to the degenerate two-edge
// outline when the slice is a single row (spec.md §4.5). Collection order
// follows original_source/src/level3grid.cpp's ReadEdges: near (col 0) and
// far (col samples-1) points interleaved per scanline row, then the full
// first and last rows interleaved per column — not four contiguous groups
// — since BuildEdges' same-parity two-apart pairing depends on that order.
func buildOutlineEdges(igmAcc *dataaccessor.Accessor, loadFirst, loadEnd, sliceFirst, nlines, samples int, segGrid geomprim.GridInfo, ignoreVal float64) ([]outline.Edge, error) {
	if nlines <= 1 {
		return outline.DegenerateEdges(segGrid.Rows, segGrid.Cols), nil
	}

	toRC := func(x, y float64) outline.BoundaryPoint {
		r, c := segGrid.RowColAt(x, y)
		if r < 0 || r >= segGrid.Rows || c < 0 || c >= segGrid.Cols {
			return outline.BoundaryPoint{Valid: false}
		}
		return outline.BoundaryPoint{Row: r, Col: c, Valid: true}
	}

	var pts []outline.BoundaryPoint
	collect := func(row, col int) {
		x, errX := igmAcc.Get(0, loadFirst+row, col)
		y, errY := igmAcc.Get(1, loadFirst+row, col)
		if errX != nil || errY != nil || x == ignoreVal || y == ignoreVal {
			pts = append(pts, outline.BoundaryPoint{Valid: false})
			return
		}
		pts = append(pts, toRC(x, y))
	}

	for r := 0; r < nlines; r++ {
		collect(sliceFirst+r, 0)
		collect(sliceFirst+r, samples-1)
	}
	for c := 0; c < samples; c++ {
		collect(sliceFirst, c)
		collect(sliceFirst+nlines-1, c)
	}

	edges := outline.BuildEdges(pts)
	if len(edges) == 0 {
		return outline.DegenerateEdges(segGrid.Rows, segGrid.Cols), nil
	}
	return edges, nil
}
