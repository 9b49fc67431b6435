package progressui

import "testing"

func TestNilBarIsNoOp(t *testing.T) {
	var b *Bar
	b.OnRow(5, 10)
	b.Finish()
}

func TestSilentOnRow(t *testing.T) {
	b := Silent(10)
	for i := 0; i <= 10; i++ {
		b.OnRow(i, 10)
	}
	b.Finish()
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(1024); got == "" {
		t.Fatal("FormatBytes returned empty string")
	}
}
