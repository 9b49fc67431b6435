package geomprim

import (
	"math"
	"testing"
)

func TestBoxInside(t *testing.T) {
	b := NewBox(0, 10, 0, 10)
	tests := []struct {
		x, y float64
		want bool
	}{
		{5, 5, true},
		{0, 5, false},  // on boundary, strict
		{10, 5, false}, // on boundary, strict
		{-1, 5, false},
		{11, 5, false},
	}
	for _, tt := range tests {
		if got := b.Inside(tt.x, tt.y); got != tt.want {
			t.Errorf("Inside(%g,%g) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestBoxDegenerate(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for degenerate box")
		}
	}()
	NewBox(5, 5, 0, 10)
}

func TestGridInfoRoundTrip(t *testing.T) {
	g := GridInfo{TLX: 0, TLY: 10, PixSizeX: 1, PixSizeY: 1, Rows: 10, Cols: 10}

	// spec.md §8 boundary property 7: top-left maps to (0,0).
	row, col := g.RowColAt(g.TLX, g.TLY)
	if row != 0 || col != 0 {
		t.Errorf("RowColAt(TLX,TLY) = (%d,%d), want (0,0)", row, col)
	}

	brx := g.TLX + float64(g.Cols)*g.PixSizeX
	bry := g.TLY - float64(g.Rows)*g.PixSizeY
	row, col = g.RowColAt(brx-1e-9, bry+1e-9)
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		t.Errorf("RowColAt near bottom-right out of bounds: (%d,%d)", row, col)
	}
}

func TestGridInfoCellCenter(t *testing.T) {
	g := GridInfo{TLX: 0, TLY: 3, PixSizeX: 1, PixSizeY: 1, Rows: 3, Cols: 3}
	p := g.CellCenter(0, 0)
	if p.X() != 0.5 || p.Y() != 2.5 {
		t.Errorf("CellCenter(0,0) = (%g,%g), want (0.5,2.5)", p.X(), p.Y())
	}
}

func TestBoxIntersects(t *testing.T) {
	a := NewBox(0, 10, 0, 10)
	b := NewBox(5, 15, 5, 15)
	c := NewBox(20, 30, 20, 30)
	if !a.Intersects(b) {
		t.Error("expected a,b to intersect")
	}
	if a.Intersects(c) {
		t.Error("expected a,c to not intersect")
	}
}

func TestEllipsoidZeroDistance(t *testing.T) {
	d, _, _ := WGS84.InverseGeodesic(0, 0, 0, 0)
	if d != 0 {
		t.Errorf("distance to self = %g, want 0", d)
	}
}

func TestEllipsoidKnownDistance(t *testing.T) {
	// Equator quarter-circle: (0,0) to (90deg,0) should be close to
	// a*pi/2 (equatorial radius is exact on the equator).
	d, _, _ := WGS84.InverseGeodesic(0, 0, math.Pi/2, 0)
	want := WGS84.A * math.Pi / 2
	if math.Abs(d-want) > 1 {
		t.Errorf("equatorial quarter distance = %g, want ~%g", d, want)
	}
}

func TestEllipsoidSymmetric(t *testing.T) {
	const deg = math.Pi / 180
	d1, _, _ := WGS84.InverseGeodesic(0, 10*deg, 5*deg, 15*deg)
	d2, _, _ := WGS84.InverseGeodesic(5*deg, 15*deg, 0, 10*deg)
	if math.Abs(d1-d2) > 1e-3 {
		t.Errorf("distance not symmetric: %g vs %g", d1, d2)
	}
}

func TestDestinationPointRoundTrip(t *testing.T) {
	lon, lat := 10.0, 45.0
	// Travel 10km east, then check the inverse distance recovers ~10km.
	lon2, lat2 := WGS84.DestinationPoint(lon, lat, math.Pi/2, 10000)
	d := WGS84.InverseGeodesicDeg(lon, lat, lon2, lat2)
	if math.Abs(d-10000) > 10 {
		t.Errorf("round-trip distance = %g, want ~10000", d)
	}
}
