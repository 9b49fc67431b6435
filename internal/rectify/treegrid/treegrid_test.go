package treegrid

import (
	"math"
	"testing"

	"github.com/arsf/maprectify/internal/rectify/geomprim"
)

func buildGrid(t *testing.T) *Grid {
	t.Helper()
	// 10x10 ground area, samples on a 1-unit lattice, mean spacing 1.
	g, err := New(0, 10, 10, 0, 1, 1, PlanarMetric())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var samples []Sample
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			samples = append(samples, Sample{IgmRow: r, IgmCol: c, X: float64(c) + 0.5, Y: 10 - (float64(r) + 0.5)})
		}
	}
	g.Insert(samples)
	return g
}

func TestKNearestFindsClosest(t *testing.T) {
	g := buildGrid(t)
	got := g.KNearest(5.4, 5.4, 1, 5, 0, math.NaN(), nil)
	if len(got) != 1 {
		t.Fatalf("KNearest returned %d samples, want 1", len(got))
	}
	if got[0].IgmRow != 4 || got[0].IgmCol != 5 {
		t.Errorf("nearest = (%d,%d), want (4,5)", got[0].IgmRow, got[0].IgmCol)
	}
}

func TestKNearestRespectsRadius(t *testing.T) {
	g := buildGrid(t)
	// (5.0, 5.0) lies between lattice samples: the closest is sqrt(0.5) away.
	got := g.KNearest(5.0, 5.0, 50, 0.1, 0, math.NaN(), nil)
	if len(got) != 0 {
		t.Fatalf("KNearest with tiny radius returned %d, want 0", len(got))
	}
}

func TestKNearestSortedAscending(t *testing.T) {
	g := buildGrid(t)
	got := g.KNearest(5.5, 5.5, 5, 5, 0, math.NaN(), nil)
	if len(got) != 5 {
		t.Fatalf("got %d samples, want 5", len(got))
	}
	prevD := -1.0
	for _, s := range got {
		d := (s.X-5.5)*(s.X-5.5) + (s.Y-5.5)*(s.Y-5.5)
		if d < prevD {
			t.Errorf("results not sorted ascending: d=%v after prevD=%v", d, prevD)
		}
		prevD = d
	}
}

func TestKNearestIgnoreValueFilter(t *testing.T) {
	g := buildGrid(t)
	accessor := func(band, row, col int) (float64, error) {
		if row == 4 && col == 5 {
			return -9999, nil
		}
		return 1, nil
	}
	got := g.KNearest(5.4, 5.4, 1, 5, 0, -9999, accessor)
	if len(got) != 1 {
		t.Fatalf("KNearest returned %d, want 1", len(got))
	}
	if got[0].IgmRow == 4 && got[0].IgmCol == 5 {
		t.Errorf("ignore-value sample was not filtered out")
	}
}

func TestInsertDropsOutOfBounds(t *testing.T) {
	g, err := New(0, 10, 10, 0, 1, 1, PlanarMetric())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.Insert([]Sample{{IgmRow: 0, IgmCol: 0, X: 1000, Y: 1000}})
	got := g.KNearest(1000, 1000, 1, 5, 0, math.NaN(), nil)
	if len(got) != 0 {
		t.Errorf("out-of-bounds sample should have been dropped, got %d results", len(got))
	}
}

func TestQuadAllQuadrantsPopulated(t *testing.T) {
	g := buildGrid(t)
	res := g.Quad(5.0, 5.0, 2, 6, 0, math.NaN(), nil)
	if !res.Complete(2) {
		t.Errorf("Quad result not complete: UL=%d UR=%d BL=%d BR=%d", len(res.UL), len(res.UR), len(res.BL), len(res.BR))
	}
}

func TestQuadOfClassification(t *testing.T) {
	cases := []struct {
		sx, sy float64
		want   int
	}{
		{-1, 1, 0},  // UL
		{1, 1, 1},   // UR
		{-1, -1, 2}, // BL
		{1, -1, 3},  // BR
	}
	for _, c := range cases {
		if got := quadOf(0, 0, c.sx, c.sy); got != c.want {
			t.Errorf("quadOf(0,0,%v,%v) = %d, want %d", c.sx, c.sy, got, c.want)
		}
	}
}

func TestGeodesicMetricZeroAtSamePoint(t *testing.T) {
	m := GeodesicMetric(geomprim.WGS84)
	if d := m.DistanceSq(-1.0, 51.0, -1.0, 51.0); d != 0 {
		t.Errorf("DistanceSq at same point = %v, want 0", d)
	}
}
