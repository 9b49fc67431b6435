// Package rasterio is the RasterReader/RasterWriter contract of spec.md
// §4.1 — "A minimal typed contract, not an implementation" — together with
// one concrete implementation of it: a BIL (band-interleaved-by-line)
// raster with an ENVI-style text header, the format the IGM and Level-1
// inputs and the Level-3 output are carried in throughout this system.
//
// The read side's random/sequential access split and error wrapping follow
// internal/cog/reader.go's Open/ReadTile style; the write side's append-only
// + positioned-random split follows original_source/src/bilwriter.cpp/.h's
// WriteBandLine/WriteBandLineSection/Close.
package rasterio

import (
	"fmt"

	"github.com/arsf/maprectify/internal/rectify/dtype"
	"github.com/arsf/maprectify/internal/rectify/rectifyerr"
)

// Reader is typed random and sequential access to a Level-1-shaped raster.
type Reader interface {
	Rows() int
	Cols() int
	Bands() int
	DType() dtype.DType
	Header() map[string]string

	// ReadBandLine returns one band's row of samples (random access).
	ReadBandLine(band, row int) ([]float64, error)
	// ReadLine returns one row for all bands, interleaved
	// band-major-within-row (sequential access).
	ReadLine(row int) ([]float64, error)
	// ReadCell returns a single sample, the fallback path used when a
	// coordinate falls outside the currently RAM-resident block.
	ReadCell(band, row, col int) (float64, error)

	Close() error
}

// Writer is append-only and positioned-random access to the Level-3
// output raster (and, optionally, the row/col map raster).
type Writer interface {
	// WriteLine appends one row, all bands interleaved, in row-major
	// order (the next sequential row after the last one written).
	WriteLine(buf []float64) error
	// WriteRange writes a sub-range of one band of one row; the file
	// must already be preallocated to its full size (random, not
	// append-only).
	WriteRange(row, band, colLo, colHi int, buf []float64) error

	Close() error
}

func wrapOpen(path string, err error) error {
	return rectifyerr.NewIoError("open", path, err)
}

func wrapRead(path string, err error) error {
	return rectifyerr.NewIoError("read", path, err)
}

func wrapWrite(path string, err error) error {
	return rectifyerr.NewIoError("write", path, err)
}

func checkDType(d dtype.DType) error {
	switch d {
	case dtype.U8, dtype.I16, dtype.U16, dtype.I32, dtype.U32, dtype.F32, dtype.F64:
		return nil
	default:
		return &rectifyerr.IoError{Op: "dtype", Err: fmt.Errorf("unsupported dtype %v", d)}
	}
}
