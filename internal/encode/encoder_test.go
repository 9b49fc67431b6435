package encode

import (
	"image"
	"image/color"
	"testing"
)

// testImage creates a size x size RGBA image with a gradient pattern.
func testImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestNewEncoder_UnsupportedFormat(t *testing.T) {
	for _, format := range []string{"png", "jpeg", "bmp", ""} {
		if _, err := NewEncoder(format, 85); err == nil {
			t.Errorf("NewEncoder(%q): expected error, got nil", format)
		}
	}
}

func TestNewEncoder_WebP(t *testing.T) {
	enc, err := NewEncoder("webp", 80)
	if err != nil {
		// No CGO/libwebp in this build environment: the stub's error is
		// itself the expected behaviour (webp_stub.go).
		t.Skipf("webp encoder unavailable: %v", err)
	}
	if enc.Format() != "webp" {
		t.Errorf("Format() = %q, want \"webp\"", enc.Format())
	}

	data, err := enc.Encode(testImage(64))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Encode produced empty data")
	}
}

func TestWebPEncoder_EmptyImage(t *testing.T) {
	enc, err := NewEncoder("webp", 0)
	if err != nil {
		t.Skipf("webp encoder unavailable: %v", err)
	}
	if _, err := enc.Encode(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatal("Encode of an empty image: expected error, got nil")
	}
}
