// Package interp implements the four interpolation kernels of spec.md
// §4.6: nearest-neighbour, inverse-distance-weighted, bilinear (on a
// single Level-1 pixel's quad and on a spatial-index quad query), and
// bicubic. All arithmetic is carried in f64 regardless of the Level-1
// dtype (spec.md §9's "templated dtype pipeline" note), with the result
// converted to the output dtype one layer up, in internal/rectify/dtype.
//
// Grounded on original_source/src/interpolator.h's per-method dispatch
// (NearestNeighbour / InverseDistanceWeighting / BiLinear / BiCubic), with
// the candidate data coming from internal/rectify/treegrid's k-nearest and
// quad queries rather than the reference's Collection tree walk.
package interp

import (
	"math"
	"sort"

	"github.com/arsf/maprectify/internal/rectify/dataaccessor"
	"github.com/arsf/maprectify/internal/rectify/warnonce"
)

// Point is a 2-D location plus the IGM row/col it was sampled from,
// matching treegrid.Sample's shape without importing the treegrid package
// (kept decoupled so interp can be tested independently).
type Point struct {
	IgmRow, IgmCol int
	X, Y           float64
}

// Candidate is a Point plus its squared distance to the query location.
type Candidate struct {
	Point
	DistSq float64
}

// NearestQuery asks for the 1-nearest sample, optionally filtered to
// non-ignore values on the given band.
type NearestQuery func(band int) []Candidate

// KQuery asks for the k-nearest samples within a radius, optionally
// filtered to non-ignore values on the given band.
type KQuery func(band int) []Candidate

// QuadQuery asks for a four-quadrant query (n per quadrant), optionally
// filtered to non-ignore values on the given band.
type QuadQuery func(band int) (ul, ur, bl, br []Candidate)

// Bands reads Level-1 band values via the shared data accessor.
type Bands struct {
	Accessor         *dataaccessor.Accessor
	BandPhysIdx      []int // physical band index for each logical output band
	IgnoreValue      float64
	MaxInterpDistSq  float64
	Warner           *warnonce.Warner
}

func (b *Bands) value(physBand, row, col int) (float64, error) {
	return b.Accessor.Get(physBand, row, col)
}

// Nearest implements spec.md §4.6.1: the sole 1-nearest sample's value per
// band, with an ignore-value retry (a 1-nearest query filtered on that
// band).
func Nearest(b *Bands, first NearestQuery, noData float64) []float64 {
	out := make([]float64, len(b.BandPhysIdx))
	nearest := first(-1)
	if len(nearest) == 0 {
		for i := range out {
			out[i] = noData
		}
		return out
	}
	p := nearest[0].Point
	for i, phys := range b.BandPhysIdx {
		v, err := b.value(phys, p.IgmRow, p.IgmCol)
		if err != nil {
			out[i] = noData
			continue
		}
		if v != b.IgnoreValue {
			out[i] = v
			continue
		}
		retry := first(phys)
		if len(retry) == 0 {
			out[i] = noData
			continue
		}
		v2, err := b.value(phys, retry[0].IgmRow, retry[0].IgmCol)
		if err != nil || v2 == b.IgnoreValue {
			out[i] = noData
			continue
		}
		out[i] = v2
	}
	return out
}

// IDW implements spec.md §4.6.2: inverse-distance-weighted average over a
// k-nearest query, dropping samples beyond max_interp_distance, with a
// per-band ignore-value retry (band-filtered k-nearest, recomputed).
func IDW(b *Bands, query KQuery, noData float64) []float64 {
	out := make([]float64, len(b.BandPhysIdx))
	base := query(-1)
	for i, phys := range b.BandPhysIdx {
		v, ok := idwOneBand(b, base, phys, noData)
		if !ok {
			retry := query(phys)
			v, ok = idwOneBand(b, retry, phys, noData)
		}
		if !ok {
			out[i] = noData
			continue
		}
		out[i] = v
	}
	return out
}

func idwOneBand(b *Bands, cands []Candidate, phys int, noData float64) (float64, bool) {
	var wsum, vwsum float64
	var n int
	for _, c := range cands {
		if c.DistSq > b.MaxInterpDistSq {
			break // candidates are sorted ascending by distance
		}
		v, err := b.value(phys, c.IgmRow, c.IgmCol)
		if err != nil {
			continue
		}
		if v == b.IgnoreValue {
			return 0, false
		}
		w := 1.0
		if c.DistSq > 0 {
			w = 1 / c.DistSq
		}
		wsum += w
		vwsum += w * v
		n++
	}
	if n == 0 || wsum == 0 {
		return 0, false
	}
	return vwsum / wsum, true
}

// Quad is the (r0,c0),(r0,c1),(r1,c0),(r1,c1) four-sample bundle shared by
// the two bilinear kernels (spec.md §4.6.3/§4.6.4), each carrying its
// ground position and IGM row/col.
type Quad struct {
	P, Q, R, S Point // P=(r0,c0) Q=(r0,c1) R=(r1,c0) S=(r1,c1)
}

// solveUV solves the quadratic bilinear-quad equations of spec.md §4.6.3
// for (u, v) given the target point X.
func solveUV(q Quad, x, y float64) (u, v float64, ok bool) {
	pqX, pqY := q.Q.X-q.P.X, q.Q.Y-q.P.Y
	prX, prY := q.R.X-q.P.X, q.R.Y-q.P.Y
	rsX, rsY := q.S.X-q.R.X, q.S.Y-q.R.Y
	pxX, pxY := x-q.P.X, y-q.P.Y

	qa := pqY*(rsX-pqX) - pqX*(rsY-pqY)
	qb := prX*pqY - prY*pqX + pxX*(rsY-pqY) - pxY*(rsX-pqX)
	qc := prY*pxX - prX*pxY

	if qa == 0 {
		if qb == 0 {
			return 0, 0, false
		}
		u = -qc / qb
	} else {
		disc := qb*qb - 4*qa*qc
		if disc < 0 {
			return 0, 0, false
		}
		sq := math.Sqrt(disc)
		u1 := (-qb + sq) / (2 * qa)
		u2 := (-qb - sq) / (2 * qa)
		in1, in2 := u1 >= 0 && u1 <= 1, u2 >= 0 && u2 <= 1
		switch {
		case in1 && in2:
			if math.Abs(u1) <= math.Abs(u2) {
				u = u1
			} else {
				u = u2
			}
		case in1:
			u = u1
		case in2:
			u = u2
		default:
			// Neither root lands in [0,1]: no shifted quad is rebuilt,
			// here or by the callers. The engine's bilinear kernels treat
			// a false return as a failed band: they retry once with a
			// band-filtered quad and otherwise write no_data.
			return 0, 0, false
		}
	}

	denomX := prX + u*(rsX-pqX)
	if denomX != 0 {
		v = (pxX - u*pqX) / denomX
	} else {
		denomY := prY + u*(rsY-pqY)
		if denomY == 0 {
			return u, 0, false
		}
		v = (pxY - u*pqY) / denomY
	}
	ok = u >= 0 && u <= 1 && v >= 0 && v <= 1
	return u, v, ok
}

func bilinearValue(d00, d01, d10, d11, u, v float64) float64 {
	return d00*(1-v)*(1-u) + d01*(1-v)*u + d10*v*(1-u) + d11*v*u
}

// BilinearQuad implements the shared (u,v) solve and output formula of
// spec.md §4.6.3/§4.6.4. quad gives the four ground positions; get reads
// the Level-1 value at a quad corner for a given physical band.
func BilinearQuad(q Quad, x, y float64, phys int, get func(phys, row, col int) (float64, bool)) (float64, bool) {
	u, v, ok := solveUV(q, x, y)
	if !ok {
		return 0, false
	}
	d00, ok00 := get(phys, q.P.IgmRow, q.P.IgmCol)
	d01, ok01 := get(phys, q.Q.IgmRow, q.Q.IgmCol)
	d10, ok10 := get(phys, q.R.IgmRow, q.R.IgmCol)
	d11, ok11 := get(phys, q.S.IgmRow, q.S.IgmCol)
	if !ok00 || !ok01 || !ok10 || !ok11 {
		return 0, false
	}
	return bilinearValue(d00, d01, d10, d11, u, v), true
}

// CubicPoint is one abscissa/value pair for the Catmull-Rom pass.
type CubicPoint struct {
	X, V float64
}

// CatmullRom evaluates one 1-D pass of the non-uniform Catmull-Rom cubic
// Hermite of spec.md §4.6.5 at x (the engine's evalCubicBand chains the
// two passes), given four ordered (strictly increasing X)
// points. Out-of-range x clamps to the nearest endpoint's value, logging a
// one-time warning via warner (warner may be nil to suppress logging, used
// in tests).
func CatmullRom(pts [4]CubicPoint, x float64, warner *warnonce.Warner) float64 {
	tangent := func(i int) float64 {
		if i == 0 || i == 3 {
			return 0
		}
		return (pts[i+1].V - pts[i-1].V) / (pts[i+1].X - pts[i-1].X)
	}
	if x < pts[0].X {
		if warner != nil {
			warner.Warn("bicubic-extrapolate-lo", "bicubic: x %.6f below abscissa range, clamping", x)
		}
		x = pts[0].X
	}
	if x > pts[3].X {
		if warner != nil {
			warner.Warn("bicubic-extrapolate-hi", "bicubic: x %.6f above abscissa range, clamping", x)
		}
		x = pts[3].X
	}
	seg := 0
	for seg < 2 && x > pts[seg+1].X {
		seg++
	}
	i0, i1 := seg, seg+1
	h := pts[i1].X - pts[i0].X
	if h == 0 {
		return pts[i0].V
	}
	t := (x - pts[i0].X) / h
	m0, m1 := tangent(i0), tangent(i1)
	t2, t3 := t*t, t*t*t
	return (2*t3-3*t2+1)*pts[i0].V + (t3-2*t2+t)*h*m0 + (-2*t3+3*t2)*pts[i1].V + (t3-t2)*h*m1
}

// BicubicGrid4x4 reorders a quad query's sixteen candidates into a 4×4
// matrix per spec.md §4.6.5: split into quadrants in query order (UL, UR,
// BL, BR); within each, sort by row descending (north first) then column
// ascending; place so row i of the matrix advances N→S and is
// increasing-X.
func BicubicGrid4x4(ul, ur, bl, br []Candidate) (grid [4][4]Point, ok bool) {
	if len(ul) != 4 || len(ur) != 4 || len(bl) != 4 || len(br) != 4 {
		return grid, false
	}
	sortQuadrant := func(c []Candidate) []Point {
		pts := make([]Point, len(c))
		for i, cc := range c {
			pts[i] = cc.Point
		}
		sort.Slice(pts, func(i, j int) bool {
			if pts[i].IgmRow != pts[j].IgmRow {
				return pts[i].IgmRow > pts[j].IgmRow // north first
			}
			return pts[i].IgmCol < pts[j].IgmCol
		})
		return pts
	}
	ulS, urS := sortQuadrant(ul), sortQuadrant(ur)
	blS, brS := sortQuadrant(bl), sortQuadrant(br)
	// North two rows come from UL/UR (already north-first), south two from BL/BR.
	rows := [4][]Point{
		{ulS[0], ulS[1], urS[0], urS[1]},
		{ulS[2], ulS[3], urS[2], urS[3]},
		{blS[0], blS[1], brS[0], brS[1]},
		{blS[2], blS[3], brS[2], brS[3]},
	}
	for i, row := range rows {
		sorted := append([]Point(nil), row...)
		sort.Slice(sorted, func(a, bIdx int) bool { return sorted[a].X < sorted[bIdx].X })
		copy(grid[i][:], sorted)
	}
	return grid, true
}
