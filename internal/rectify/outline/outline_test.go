package outline

import "testing"

// A simple rectangle swath: left edge at col 2, right edge at col 7,
// spanning rows 0..9.
func rectanglePoints() []BoundaryPoint {
	return []BoundaryPoint{
		{Row: 0, Col: 2, Valid: true},
		{Row: 9, Col: 2, Valid: true},
		{Row: 0, Col: 7, Valid: true},
		{Row: 9, Col: 7, Valid: true},
	}
}

func TestBuildEdgesSkipsHorizontal(t *testing.T) {
	pts := []BoundaryPoint{
		{Row: 5, Col: 1, Valid: true},
		{Row: 5, Col: 9, Valid: true},
	}
	edges := BuildEdges(pts)
	if len(edges) != 0 {
		t.Errorf("horizontal edge should be skipped, got %d edges", len(edges))
	}
}

func TestBuildEdgesDropsInvalid(t *testing.T) {
	pts := []BoundaryPoint{
		{Row: 0, Col: 1, Valid: false},
		{Row: 9, Col: 1, Valid: true},
	}
	edges := BuildEdges(pts)
	if len(edges) != 0 {
		t.Errorf("pair with an invalid point should be dropped, got %d edges", len(edges))
	}
}

func TestRowWindowRectangle(t *testing.T) {
	edges := BuildEdges(rectanglePoints())
	o := New(edges, 10)
	// Half-open [min_y, max_y): the span 0..9 is active for rows 0..8.
	for r := 0; r <= 8; r++ {
		lo, hi := o.RowWindow(r)
		if lo != 2 || hi != 7 {
			t.Errorf("row %d window = [%d,%d], want [2,7]", r, lo, hi)
		}
	}
}

func TestRowWindowHalfOpenExcludesMaxY(t *testing.T) {
	edges := BuildEdges(rectanglePoints())
	o := New(edges, 10)
	for r := 0; r < 9; r++ {
		o.Intersects(r)
	}
	lo, hi := o.RowWindow(9)
	if hi >= lo {
		t.Errorf("row at max_y should be excluded (half-open span), got [%d,%d]", lo, hi)
	}
}

func TestRowWindowFirstCallCatchUp(t *testing.T) {
	edges := BuildEdges(rectanglePoints())
	o := New(edges, 10)
	lo, hi := o.RowWindow(5)
	if lo != 2 || hi != 7 {
		t.Errorf("catch-up row 5 window = [%d,%d], want [2,7]", lo, hi)
	}
}

func TestDegenerateEdgesFullWidth(t *testing.T) {
	edges := DegenerateEdges(10, 20)
	o := New(edges, 20)
	lo, hi := o.RowWindow(3)
	if lo != 0 || hi != 19 {
		t.Errorf("degenerate window = [%d,%d], want [0,19]", lo, hi)
	}
}

func TestDegenerateEdgesSingleRow(t *testing.T) {
	if edges := DegenerateEdges(1, 20); edges != nil {
		t.Errorf("DegenerateEdges(1, _) should be nil for a single-row slice, got %v", edges)
	}
}

func TestRowWindowEmptyOutsideSpan(t *testing.T) {
	edges := BuildEdges(rectanglePoints())
	o := New(edges, 10)
	lo, hi := o.RowWindow(20)
	if hi >= lo {
		t.Errorf("row outside outline span should be empty, got [%d,%d]", lo, hi)
	}
}
