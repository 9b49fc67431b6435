// Package outline determines, for each output row of a segment, the
// [col_lo, col_hi] interval that actually overlies flight-line data, so
// the map engine only interpolates where the swath exists (spec.md §4.5).
// Grounded on the edge-collection / scanline-fill shape implied by
// original_source/src/level3grid.cpp's per-row processing window, though
// no isolated C++ source survives for this exact routine — the fill
// itself follows the teacher's generator.go row-loop idiom.
package outline

import (
	"log"
	"math"
	"sort"
)

// Edge is one boundary segment of the scanline polygon, in segment-grid
// row/col space: the column at min_y is min_x, and the column at any other
// row r in [min_y, max_y) is ceil(min_x + (r-min_y)*grad).
type Edge struct {
	MinY, MaxY int
	MinX       float64
	Grad       float64
}

func (e Edge) colAt(r int) int {
	if r == e.MinY {
		return int(e.MinX)
	}
	return int(math.Ceil(e.MinX + float64(r-e.MinY)*e.Grad))
}

// BoundaryPoint is one sample on the IGM slice's four edges, already
// converted to segment-grid (row, col); Valid is false for points dropped
// because the ground coordinate's conversion fell outside the grid.
type BoundaryPoint struct {
	Row, Col int
	Valid    bool
}

// BuildEdges constructs the outline's edges from the ordered boundary
// points, following original_source/src/level3grid.cpp's
// InitialiseForScanlineFill: two passes over the whole combined point
// array, each walking same-parity pairs two apart (it, it+2), plus two
// explicit closing edges joining the first two and the last two points.
// Horizontal edges (MinY == MaxY) are skipped.
func BuildEdges(points []BoundaryPoint) []Edge {
	var edges []Edge
	addEdge := func(p1, p2 BoundaryPoint) {
		if !p1.Valid || !p2.Valid {
			return
		}
		if p1.Row == p2.Row {
			return
		}
		minY, maxY := p1.Row, p2.Row
		minX, maxXCol := p1.Col, p2.Col
		if minY > maxY {
			minY, maxY = maxY, minY
			minX, maxXCol = maxXCol, minX
		}
		grad := float64(maxXCol-minX) / float64(maxY-minY)
		edges = append(edges, Edge{MinY: minY, MaxY: maxY, MinX: float64(minX), Grad: grad})
	}

	n := len(points)
	for parity := 0; parity < 2; parity++ {
		for i := parity; i+2 < n; i += 2 {
			addEdge(points[i], points[i+2])
		}
	}
	if n >= 2 {
		addEdge(points[0], points[1])
		addEdge(points[n-2], points[n-1])
	}
	return edges
}

// DegenerateEdges fakes the outline as two vertical edges at columns 0 and
// cols-1 spanning every row, the correctness fallback of spec.md §4.5 used
// when the IGM slice is degenerate (one row, or edge collection failed).
func DegenerateEdges(rows, cols int) []Edge {
	if rows <= 1 || cols <= 0 {
		return nil
	}
	return []Edge{
		{MinY: 0, MaxY: rows - 1, MinX: 0, Grad: 0},
		{MinY: 0, MaxY: rows - 1, MinX: float64(cols - 1), Grad: 0},
	}
}

// SwathOutline is the row-intersection sweep state machine of spec.md
// §4.5: an active edge set advanced row by row, producing the sorted
// column intersects for each row on demand.
type SwathOutline struct {
	edges    []Edge
	cols     int
	active   []Edge
	lastRow  int
	started  bool
	haveWin  bool
	winLo    int
	winHi    int
}

// New builds a SwathOutline from its edges (already sorted by MinY is not
// required; the sweep below scans the full edge list each time an edge
// enters or leaves).
func New(edges []Edge, cols int) *SwathOutline {
	return &SwathOutline{edges: edges, cols: cols}
}

// Intersects advances the sweep to row r and returns the sorted column
// intersects for that row (spec.md §4.5's row-intersection sweep,
// including first-call catch-up: if the first row seen is non-zero, the
// active set is seeded with every edge whose span contains r).
func (s *SwathOutline) Intersects(r int) []int {
	if !s.started {
		s.started = true
		s.lastRow = r
		if r != 0 {
			for _, e := range s.edges {
				if e.MinY <= r && r < e.MaxY {
					s.active = append(s.active, e)
				}
			}
		}
	}

	// Remove edges with max_y <= r.
	kept := s.active[:0]
	for _, e := range s.active {
		if e.MaxY > r {
			kept = append(kept, e)
		}
	}
	s.active = kept

	// Add edges with min_y == r.
	for _, e := range s.edges {
		if e.MinY == r {
			already := false
			for _, a := range s.active {
				if a == e {
					already = true
					break
				}
			}
			if !already {
				s.active = append(s.active, e)
			}
		}
	}

	cols := make([]int, 0, len(s.active))
	for _, e := range s.active {
		cols = append(cols, e.colAt(r))
	}
	sort.Ints(cols)
	s.lastRow = r
	return cols
}

// RowWindow returns the [col_lo, col_hi] processing window for row r,
// using only the outermost pair (first and last intersect) as the engine
// does — a conservative choice for self-overlapping swaths (spec.md
// §4.5). On an odd intersect count the row falls back to [0, cols-1].
//
// A row whose sweep yields zero intersects reuses the previous row's
// window rather than reporting no_data, mirroring map.h's MapLineSegment
// row loop: its bounds[2] accumulator is declared once outside the
// per-row loop and only overwritten when colbounds is non-empty, so an
// empty row silently inherits its predecessor's columns. This matters at
// the half-open sweep's own last scanline row, whose vertices are every
// edge's max_y and so never re-enter the active set for that row. A row
// with no previous window (the very first row, or an outline with no
// edges at all) still reports no_data, so an outline that never collected
// any edges reports no_data for its whole row span.
func (s *SwathOutline) RowWindow(r int) (colLo, colHi int) {
	xs := s.Intersects(r)
	switch {
	case len(xs) == 0:
		if !s.haveWin {
			return 0, -1 // empty window: no data on this row
		}
		return s.winLo, s.winHi
	case len(xs)%2 != 0:
		log.Printf("outline: odd intersect count (%d) at row %d, falling back to full row", len(xs), r)
		colLo, colHi = 0, s.cols-1
	default:
		colLo, colHi = xs[0], xs[len(xs)-1]
	}
	if colLo < 0 {
		colLo = 0
	}
	if colHi > s.cols-1 {
		colHi = s.cols - 1
	}
	s.winLo, s.winHi, s.haveWin = colLo, colHi, true
	return colLo, colHi
}
