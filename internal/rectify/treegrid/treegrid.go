// Package treegrid is the uniform-grid spatial index over IGM ground
// points (spec.md §4.3): construction from the IGM's X/Y bounds and mean
// sample spacing, insertion of (igm_row, igm_col) samples into grid cells,
// and k-nearest / four-quadrant queries against a DataAccessor for the
// ignore-value skip/retry policy.
//
// Grounded on original_source/src/TreeGrid.h/.cpp, with the redesign named
// in spec.md §9: an arena of cells addressed by an Option-like index map
// replaces the reference's pointer-of-pointer matrix with a singleton
// empty-collection sentinel (avoiding the aliasing hazard of a shared
// "null" object every empty cell points to).
package treegrid

import (
	"container/heap"
	"fmt"
	"log"
	"math"

	"github.com/arsf/maprectify/internal/rectify/geomprim"
)

// Metric is the distance-squared capability of a grid: planar (projected
// metres) or geodesic (ellipsoidal degrees). Modelled as a value chosen
// once per grid, per spec.md §9 ("Geographic-metric pluggability"),
// replacing the reference's Collection/EllipsoidCollection subclass pair.
type Metric interface {
	DistanceSq(px, py, qx, qy float64) float64
	// MetresToDegrees converts a search radius in metres into (dLon, dLat)
	// at the given home point, for AABB construction (spec.md §4.4). A
	// planar metric returns the radius unchanged on both axes.
	MetresToDegrees(homeX, homeY, radiusM float64) (dx, dy float64)
}

type planarMetric struct{}

func (planarMetric) DistanceSq(px, py, qx, qy float64) float64 {
	dx, dy := px-qx, py-qy
	return dx*dx + dy*dy
}

func (planarMetric) MetresToDegrees(_, _, radiusM float64) (float64, float64) {
	return radiusM, radiusM
}

// PlanarMetric is the metric for a projected (non-geographic) grid.
func PlanarMetric() Metric { return planarMetric{} }

type geodesicMetric struct {
	ell geomprim.Ellipsoid
}

// GeodesicMetric is the metric for a geographic (lat/lon) grid, using
// Bowring's inverse geodesic on the given ellipsoid.
func GeodesicMetric(ell geomprim.Ellipsoid) Metric {
	return geodesicMetric{ell: ell}
}

func (g geodesicMetric) DistanceSq(px, py, qx, qy float64) float64 {
	d := g.ell.InverseGeodesicDeg(px, py, qx, qy)
	return d * d
}

func (g geodesicMetric) MetresToDegrees(homeX, homeY, radiusM float64) (dx, dy float64) {
	// East azimuth (90°) and north azimuth (0°) from the home point.
	lonE, _ := g.ell.DestinationPoint(homeX, homeY, math.Pi/2, radiusM)
	_, latN := g.ell.DestinationPoint(homeX, homeY, 0, radiusM)
	dx = math.Abs(lonE - homeX)
	dy = math.Abs(latN - homeY)
	return dx, dy
}

// Sample is one inserted ground point, carrying its IGM location back.
type Sample struct {
	IgmRow, IgmCol int
	X, Y           float64
}

// Cell holds every Sample mapped into one grid bucket.
type Cell struct {
	Samples []Sample
}

// cellID indexes into the grid's cell arena; noCellID (-1) means "no
// cell materialised here yet" (see cellAt), replacing the reference's
// NULL_CELL sentinel.
type cellID int

const noCellID cellID = -1

// Grid is the uniform-grid spatial index.
type Grid struct {
	rows, cols int
	tlX, tlY   float64
	brX, brY   float64
	sizeX, sizeY float64

	index []cellID // rows*cols, noCellID where nothing has been inserted
	arena []Cell

	metric Metric
}

// New builds an empty Grid covering the IGM's X/Y bounds, sized by the
// construction rule of spec.md §4.3: cell size (sx, sy) = (5·dx, 5·dy) for
// an estimated mean sample spacing (dx, dy), targeting ~25-30 samples per
// cell.
func New(tlX, tlY, brX, brY, meanDx, meanDy float64, metric Metric) (*Grid, error) {
	if meanDx <= 0 || meanDy <= 0 {
		return nil, fmt.Errorf("treegrid: mean spacing must be positive, got (%g,%g)", meanDx, meanDy)
	}
	sx, sy := 5*meanDx, 5*meanDy
	rows := int(math.Ceil((tlY-brY)/sy)) + 1
	cols := int(math.Ceil((brX-tlX)/sx)) + 1
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("treegrid: degenerate grid rows=%d cols=%d", rows, cols)
	}
	idx := make([]cellID, rows*cols)
	for i := range idx {
		idx[i] = noCellID
	}
	return &Grid{
		rows: rows, cols: cols,
		tlX: tlX, tlY: tlY, brX: brX, brY: brY,
		sizeX: sx, sizeY: sy,
		index:  idx,
		metric: metric,
	}, nil
}

func (g *Grid) Rows() int         { return g.rows }
func (g *Grid) Cols() int         { return g.cols }
func (g *Grid) SizeX() float64    { return g.sizeX }
func (g *Grid) SizeY() float64    { return g.sizeY }
func (g *Grid) IsGeographic() bool {
	_, ok := g.metric.(geodesicMetric)
	return ok
}

// rowColOf maps a ground point to its grid cell indices (may be out of
// bounds; caller checks).
func (g *Grid) rowColOf(x, y float64) (r, c int) {
	r = int(math.Floor((g.tlY - y) / g.sizeY))
	c = int(math.Floor((x - g.tlX) / g.sizeX))
	return r, c
}

func (g *Grid) inBounds(r, c int) bool {
	return r >= 0 && r < g.rows && c >= 0 && c < g.cols
}

// cellAt returns the cell at (r, c), materialising it on first insert.
func (g *Grid) cellAt(r, c int, create bool) *Cell {
	pos := r*g.cols + c
	id := g.index[pos]
	if id == noCellID {
		if !create {
			return nil
		}
		g.arena = append(g.arena, Cell{})
		id = cellID(len(g.arena) - 1)
		g.index[pos] = id
	}
	return &g.arena[id]
}

// Insert adds the samples given by (x, y) pairs keyed to IGM row/col.
// Points whose mapped cell falls outside the grid are dropped with a log
// entry, per spec.md §4.3 — this is the defence against a point that sat
// exactly on the upper X/Y bound rounding up to rows or cols.
func (g *Grid) Insert(samples []Sample) {
	for _, s := range samples {
		r, c := g.rowColOf(s.X, s.Y)
		if !g.inBounds(r, c) {
			log.Printf("treegrid: dropping sample igm(%d,%d) at (%.6f,%.6f): mapped cell (%d,%d) out of bounds [0,%d)x[0,%d)",
				s.IgmRow, s.IgmCol, s.X, s.Y, r, c, g.rows, g.cols)
			continue
		}
		cell := g.cellAt(r, c, true)
		cell.Samples = append(cell.Samples, s)
	}
}

// cellBox returns the AABB of cell (r, c).
func (g *Grid) cellBox(r, c int) (minX, maxX, minY, maxY float64) {
	minX = g.tlX + float64(c)*g.sizeX
	maxX = minX + g.sizeX
	maxY = g.tlY - float64(r)*g.sizeY
	minY = maxY - g.sizeY
	return
}

func boxesIntersect(aMinX, aMaxX, aMinY, aMaxY, bMinX, bMaxX, bMinY, bMaxY float64) bool {
	return aMinX <= bMaxX && aMaxX >= bMinX && aMinY <= bMaxY && aMaxY >= bMinY
}

// Candidate is a sample plus its squared distance to the search point, as
// returned by KNearest and Quad (spec.md §4.6's interpolators need d_i²
// for IDW weighting).
type Candidate struct {
	Sample
	DistSq float64
}

// maxHeap keeps the k smallest distSq seen, with the current worst at the
// root for O(1) eviction comparisons (spec.md §4.3 step 5).
type maxHeap []Candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].DistSq > h[j].DistSq }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(Candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// AccessorFunc reads a Level-1 value for the ignore-value test, matching
// dataaccessor.Accessor.Get's signature.
type AccessorFunc func(band, row, col int) (float64, error)

// KNearest returns up to k samples within radius R of (px, py) whose
// Level-1 value at (band, igm_row, igm_col) is not ignoreVal, nearest
// first (spec.md §4.3). If accessor is nil, no ignore-value filtering is
// applied (the engine's first, band-independent query of each cell).
func (g *Grid) KNearest(px, py float64, k int, radius float64, band int, ignoreVal float64, accessor AccessorFunc) []Candidate {
	if k <= 0 {
		return nil
	}
	r0, c0 := g.rowColOf(px, py)
	h := &maxHeap{}
	heap.Init(h)

	admit := func(s Sample) {
		if accessor != nil {
			v, err := accessor(band, s.IgmRow, s.IgmCol)
			if err != nil || v == ignoreVal {
				return
			}
		}
		d := g.metric.DistanceSq(px, py, s.X, s.Y)
		if d > radius*radius {
			return
		}
		if h.Len() < k {
			heap.Push(h, Candidate{Sample: s, DistSq: d})
			return
		}
		if d < (*h)[0].DistSq {
			heap.Pop(h)
			heap.Push(h, Candidate{Sample: s, DistSq: d})
		}
	}

	if g.inBounds(r0, c0) {
		if cell := g.cellAt(r0, c0, false); cell != nil {
			for _, s := range cell.Samples {
				admit(s)
			}
		}
	}

	dLonM, dLatM := g.metric.MetresToDegrees(px, py, radius)
	sMinX, sMaxX := px-dLonM, px+dLonM
	sMinY, sMaxY := py-dLatM, py+dLatM

	visited := map[[2]int]bool{{r0, c0}: true}
	visitCell := func(r, c int) bool {
		key := [2]int{r, c}
		if visited[key] {
			return false
		}
		visited[key] = true
		if !g.inBounds(r, c) {
			return false
		}
		minX, maxX, minY, maxY := g.cellBox(r, c)
		if !boxesIntersect(minX, maxX, minY, maxY, sMinX, sMaxX, sMinY, sMaxY) {
			return false
		}
		cell := g.cellAt(r, c, false)
		if cell != nil {
			for _, s := range cell.Samples {
				admit(s)
			}
		}
		return true
	}

	for ring := 1; ; ring++ {
		any := false
		for c := c0 - ring; c <= c0+ring; c++ {
			if visitCell(r0-ring, c) {
				any = true
			}
			if visitCell(r0+ring, c) {
				any = true
			}
		}
		for r := r0 - ring + 1; r <= r0+ring-1; r++ {
			if visitCell(r, c0-ring) {
				any = true
			}
			if visitCell(r, c0+ring) {
				any = true
			}
		}
		if !any {
			break
		}
	}

	// Pop drains largest-first; fill from the back for ascending order.
	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Candidate)
	}
	return out
}

// QuadResult is the four-quadrant query's output, organised UL, UR, BL,
// BR around the search point (spec.md §4.3).
type QuadResult struct {
	UL, UR, BL, BR []Candidate
}

// Complete reports whether every quadrant reached n samples.
func (q QuadResult) Complete(n int) bool {
	return len(q.UL) >= n && len(q.UR) >= n && len(q.BL) >= n && len(q.BR) >= n
}

// quadOf classifies a sample relative to the search point by the signs of
// (dx, dy): UL = (-,+), UR = (+,+), BL = (-,-), BR = (+,-). Points exactly
// on an axis fall to the positive side.
func quadOf(px, py, sx, sy float64) int {
	dx, dy := sx-px, sy-py
	switch {
	case dx < 0 && dy >= 0:
		return 0 // UL
	case dx >= 0 && dy >= 0:
		return 1 // UR
	case dx < 0 && dy < 0:
		return 2 // BL
	default:
		return 3 // BR
	}
}

// Quad returns up to n samples per quadrant around (px, py), expanding the
// ring sweep until all four quadrants are full (then tightening the
// search radius to the largest distance held), per spec.md §4.3.
func (g *Grid) Quad(px, py float64, n int, radius float64, band int, ignoreVal float64, accessor AccessorFunc) QuadResult {
	if n <= 0 {
		return QuadResult{}
	}
	r0, c0 := g.rowColOf(px, py)
	heaps := [4]*maxHeap{{}, {}, {}, {}}
	for i := range heaps {
		heap.Init(heaps[i])
	}

	admit := func(s Sample) {
		if accessor != nil {
			v, err := accessor(band, s.IgmRow, s.IgmCol)
			if err != nil || v == ignoreVal {
				return
			}
		}
		d := g.metric.DistanceSq(px, py, s.X, s.Y)
		q := quadOf(px, py, s.X, s.Y)
		h := heaps[q]
		if h.Len() < n {
			heap.Push(h, Candidate{Sample: s, DistSq: d})
			return
		}
		if d < (*h)[0].DistSq {
			heap.Pop(h)
			heap.Push(h, Candidate{Sample: s, DistSq: d})
		}
	}

	worst := func() float64 {
		w := 0.0
		for _, h := range heaps {
			if h.Len() == 0 {
				return math.MaxFloat64
			}
			if (*h)[0].DistSq > w {
				w = (*h)[0].DistSq
			}
		}
		return w
	}

	visited := map[[2]int]bool{}
	visitCell := func(r, c int, box [4]float64) bool {
		key := [2]int{r, c}
		if visited[key] {
			return false
		}
		visited[key] = true
		if !g.inBounds(r, c) {
			return false
		}
		minX, maxX, minY, maxY := g.cellBox(r, c)
		if !boxesIntersect(minX, maxX, minY, maxY, box[0], box[1], box[2], box[3]) {
			return false
		}
		cell := g.cellAt(r, c, false)
		if cell != nil {
			for _, s := range cell.Samples {
				admit(s)
			}
		}
		return true
	}

	curRadius := radius
	for ring := 0; ; ring++ {
		dLonM, dLatM := g.metric.MetresToDegrees(px, py, curRadius)
		box := [4]float64{px - dLonM, px + dLonM, py - dLatM, py + dLatM}
		any := false
		if ring == 0 {
			if visitCell(r0, c0, box) {
				any = true
			}
		} else {
			for c := c0 - ring; c <= c0+ring; c++ {
				if visitCell(r0-ring, c, box) {
					any = true
				}
				if visitCell(r0+ring, c, box) {
					any = true
				}
			}
			for r := r0 - ring + 1; r <= r0+ring-1; r++ {
				if visitCell(r, c0-ring, box) {
					any = true
				}
				if visitCell(r, c0+ring, box) {
					any = true
				}
			}
		}
		if heaps[0].Len() >= n && heaps[1].Len() >= n && heaps[2].Len() >= n && heaps[3].Len() >= n {
			w := worst()
			if w < curRadius*curRadius {
				curRadius = math.Sqrt(w)
			}
		}
		if !any && ring > 0 {
			break
		}
	}

	drain := func(h *maxHeap) []Candidate {
		tmp := make([]Candidate, h.Len())
		for i := len(tmp) - 1; i >= 0; i-- {
			tmp[i] = heap.Pop(h).(Candidate)
		}
		return tmp
	}
	return QuadResult{
		UL: drain(heaps[0]),
		UR: drain(heaps[1]),
		BL: drain(heaps[2]),
		BR: drain(heaps[3]),
	}
}
