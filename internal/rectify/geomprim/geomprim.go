// Package geomprim holds the geometry primitives shared by the resampling
// engine: ground points, axis-aligned boxes, integer raster indices, and the
// grid description that ties a map projection to a row/col lattice.
package geomprim

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Point2D is a projected ground coordinate.
type Point2D struct {
	p geom.Point
}

// NewPoint2D returns the point (x, y).
func NewPoint2D(x, y float64) Point2D {
	return Point2D{p: geom.Point{X: x, Y: y}}
}

// X returns the point's X coordinate.
func (p Point2D) X() float64 { return p.p.X }

// Y returns the point's Y coordinate.
func (p Point2D) Y() float64 { return p.p.Y }

// RowCol is an integer index into a raster.
type RowCol struct {
	Row, Col int64
}

// Box is an axis-aligned rectangle with min < max on both axes.
type Box struct {
	b geom.Bounds
}

// NewBox builds a Box from its extremes. Panics if minX >= maxX or
// minY >= maxY, matching the spec's invariant that a Box is never
// degenerate.
func NewBox(minX, maxX, minY, maxY float64) Box {
	if minX >= maxX || minY >= maxY {
		panic(fmt.Sprintf("geomprim: degenerate box min=(%g,%g) max=(%g,%g)", minX, minY, maxX, maxY))
	}
	return Box{b: geom.Bounds{
		Min: geom.Point{X: minX, Y: minY},
		Max: geom.Point{X: maxX, Y: maxY},
	}}
}

// MinX, MaxX, MinY, MaxY return the box's extremes.
func (b Box) MinX() float64 { return b.b.Min.X }
func (b Box) MaxX() float64 { return b.b.Max.X }
func (b Box) MinY() float64 { return b.b.Min.Y }
func (b Box) MaxY() float64 { return b.b.Max.Y }

// Inside reports whether (x, y) lies strictly within the box.
func (b Box) Inside(x, y float64) bool {
	return x > b.b.Min.X && x < b.b.Max.X && y > b.b.Min.Y && y < b.b.Max.Y
}

// Intersects reports whether b and o overlap (closed-interval test, used for
// cell/search-box AABB tests where touching edges should still count).
func (b Box) Intersects(o Box) bool {
	return b.b.Min.X <= o.b.Max.X && b.b.Max.X >= o.b.Min.X &&
		b.b.Min.Y <= o.b.Max.Y && b.b.Max.Y >= o.b.Min.Y
}

// GridInfo describes a north-up output raster: its corners, signed pixel
// sizes, dimensions, the ordered band subset it carries, and a free-form
// projection descriptor (WKT or PROJ string; reprojection itself is out of
// scope, see spec.md §1).
type GridInfo struct {
	TLX, TLY   float64
	BRX, BRY   float64
	PixSizeX   float64 // > 0
	PixSizeY   float64 // > 0, Y increases downward by PixSizeY per row
	Rows, Cols int
	BandList   []int // zero-based, unique, ordered
	Projection string
	Geographic bool // true when Projection names a geographic (lat/lon) CRS
}

// CellCenter returns the ground coordinate of the centre of output cell
// (row, col).
func (g GridInfo) CellCenter(row, col int) Point2D {
	x := g.TLX + (float64(col)+0.5)*g.PixSizeX
	y := g.TLY - (float64(row)+0.5)*g.PixSizeY
	return NewPoint2D(x, y)
}

// RowColAt converts a ground coordinate into the output grid's row/col
// indices (may be out of [0,Rows)x[0,Cols) — callers must bounds-check).
func (g GridInfo) RowColAt(x, y float64) (row, col int) {
	row = int(math.Floor((g.TLY - y) / g.PixSizeY))
	col = int(math.Floor((x - g.TLX) / g.PixSizeX))
	return row, col
}
