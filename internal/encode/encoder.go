package encode

import (
	"fmt"
	"image"
)

// Encoder encodes a preview image into WebP bytes for --preview-webp.
type Encoder interface {
	// Encode encodes an image to bytes in the encoder's format.
	Encode(img image.Image) ([]byte, error)

	// Format returns the format name (e.g. "webp").
	Format() string
}

// NewEncoder creates an encoder for the given format and quality. webp is
// the only supported format: the map engine's --preview-webp output is the
// sole caller, so the teacher's multi-format tile encoder (jpeg/png/
// terrarium, PMTiles tile-type plumbing, a standalone decoder) has no
// caller here and was trimmed rather than carried unexercised.
func NewEncoder(format string, quality int) (Encoder, error) {
	switch format {
	case "webp":
		return newWebPEncoder(quality)
	default:
		return nil, fmt.Errorf("unsupported preview format: %q (supported: webp)", format)
	}
}
