package dtype

import "testing"

func TestParseOutputDType(t *testing.T) {
	for _, s := range []string{"uchar8", "int16", "uint16", "int32", "uint32", "float32", "float64"} {
		if _, err := ParseOutputDType(s); err != nil {
			t.Errorf("ParseOutputDType(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseOutputDType("bogus"); err == nil {
		t.Error("expected error for unsupported dtype")
	}
}

func TestSize(t *testing.T) {
	cases := map[DType]int{U8: 1, I16: 2, U16: 2, I32: 4, U32: 4, F32: 4, F64: 8}
	for d, want := range cases {
		if got := d.Size(); got != want {
			t.Errorf("%v.Size() = %d, want %d", d, got, want)
		}
	}
}

func TestFromFloat64Rounding(t *testing.T) {
	if got := FromFloat64(U16, 4.5); got != 5 {
		t.Errorf("round 4.5 -> %g, want 5", got)
	}
	if got := FromFloat64(U16, 4.4); got != 4 {
		t.Errorf("round 4.4 -> %g, want 4", got)
	}
	if got := FromFloat64(F32, 4.9); got != 4.9 {
		t.Errorf("float target should not round: got %g", got)
	}
}

func TestFromFloat64Clamp(t *testing.T) {
	if got := FromFloat64(U8, 1000); got != 255 {
		t.Errorf("clamp high = %g, want 255", got)
	}
	if got := FromFloat64(U8, -10); got != 0 {
		t.Errorf("clamp low = %g, want 0", got)
	}
}
