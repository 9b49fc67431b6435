package warnonce

import "testing"

func TestWarnOnce(t *testing.T) {
	w := New()
	w.Warn("oob", "point out of bounds: %d", 1)
	w.Warn("oob", "point out of bounds: %d", 2)
	w.Warn("extrapolate", "bicubic extrapolated")
	if got := w.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}
