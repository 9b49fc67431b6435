// Package dtype names the Level-1/Level-3 pixel datatypes and provides the
// single dispatch point from an on-disk dtype tag to a concrete numeric
// pipeline, per spec.md DESIGN NOTES §9 ("dispatch once at the boundary...
// keep interpolation arithmetic in f64 internally"). This mirrors the
// teacher's own tag-dispatch style in internal/cog/ifd.go (SampleFormat +
// BitsPerSample selecting a concrete per-pixel reader).
package dtype

import (
	"fmt"
	"math"
)

// DType identifies one of the seven supported pixel datatypes.
type DType int

const (
	U8 DType = iota
	I16
	U16
	I32
	U32
	F32
	F64
)

// String returns the CLI/header name for d (e.g. "uint16").
func (d DType) String() string {
	switch d {
	case U8:
		return "uchar8"
	case I16:
		return "int16"
	case U16:
		return "uint16"
	case I32:
		return "int32"
	case U32:
		return "uint32"
	case F32:
		return "float32"
	case F64:
		return "float64"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// Size returns the size in bytes of one sample of d.
func (d DType) Size() int {
	switch d {
	case U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case F64:
		return 8
	default:
		panic("dtype: unknown DType")
	}
}

// ParseOutputDType maps the --outputdatatype CLI token (spec.md §6) to a
// DType.
func ParseOutputDType(s string) (DType, error) {
	switch s {
	case "uchar8":
		return U8, nil
	case "int16":
		return I16, nil
	case "uint16":
		return U16, nil
	case "int32":
		return I32, nil
	case "uint32":
		return U32, nil
	case "float32":
		return F32, nil
	case "float64":
		return F64, nil
	default:
		return 0, fmt.Errorf("dtype: unsupported output datatype %q", s)
	}
}

// MaxF64 returns math.MaxFloat64, whatever the dtype. Nothing in this
// module calls it: the engine tests IGM coordinates against
// Params.IgnoreValue and does not read an ignore value from the IGM header.
func MaxF64() float64 {
	return math.MaxFloat64
}

// ToFloat64 converts a raw sample value (read as its native Go numeric
// type, boxed in a float64 by the raster reader) to the f64 the
// interpolation pipeline works in. The raster reader already performs the
// byte-level decode; this is purely a widening step kept here so all
// dtype-sensitive arithmetic lives in one package.
func ToFloat64(d DType, raw float64) float64 {
	return raw
}

// FromFloat64 converts an f64 accumulator value back to the on-disk
// representation for dtype d. Integer targets round to nearest with halves
// away from zero (floor(v+0.5) for v >= 0, ceil(v-0.5) for v < 0, so an
// exact negative integer such as a -9999 no-data value is kept) and are
// then clamped to the dtype's range; float targets are returned unrounded.
func FromFloat64(d DType, v float64) float64 {
	switch d {
	case F32, F64:
		return v
	default:
		if v >= 0 {
			v = math.Floor(v + 0.5)
		} else {
			v = math.Ceil(v - 0.5)
		}
		return clampToRange(d, v)
	}
}

func clampToRange(d DType, v float64) float64 {
	lo, hi := rangeOf(d)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func rangeOf(d DType) (lo, hi float64) {
	switch d {
	case U8:
		return 0, math.MaxUint8
	case I16:
		return math.MinInt16, math.MaxInt16
	case U16:
		return 0, math.MaxUint16
	case I32:
		return math.MinInt32, math.MaxInt32
	case U32:
		return 0, math.MaxUint32
	default:
		return math.Inf(-1), math.Inf(1)
	}
}
