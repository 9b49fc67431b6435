// Package dataaccessor gives unified access to a Level-1 pixel value,
// transparently served from a RAM-resident block when one covers the
// request, falling through to a random read on the underlying file
// otherwise (spec.md §4.2). Grounded on original_source/src/
// treegrid_support.h's ItemData: IsInRAM/GetX/GetY there is this package's
// Get here, generalised from the IGM's two fixed X/Y bands to an arbitrary
// logical band list over a Level-1 cube.
package dataaccessor

import (
	"github.com/arsf/maprectify/internal/rectify/rasterio"
)

// Block is a RAM-resident slice of a raster: nrows consecutive rows
// starting at firstRow, carrying the bands named in BandMap (physical
// indices into the underlying file, in the order materialised into Data).
// Data is indexed band, then row, then col: Data[bandPos][row-firstRow][col].
type Block struct {
	FirstRow int
	NRows    int
	BandMap  []int // physical band index for each materialised band position
	Data     [][][]float64

	lastHit int // cached position from the last bandPos scan
}

func (b *Block) inRAM(physBand, row int) bool {
	if b == nil {
		return false
	}
	if row < b.FirstRow || row >= b.FirstRow+b.NRows {
		return false
	}
	return b.bandPos(physBand) >= 0
}

// bandPos does a linear scan caching the last-hit position, since band
// queries are typically band-consecutive (spec.md §4.2).
func (b *Block) bandPos(physBand int) int {
	n := len(b.BandMap)
	if n == 0 {
		return -1
	}
	start := b.lastHit
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if b.BandMap[idx] == physBand {
			b.lastHit = idx
			return idx
		}
	}
	return -1
}

// Accessor serves Level-1 samples from an optional in-RAM Block, falling
// through to the file for rows/bands the block doesn't cover.
type Accessor struct {
	block *Block
	file  rasterio.Reader
}

// New returns an Accessor. block may be nil (every query goes to file).
func New(block *Block, file rasterio.Reader) *Accessor {
	return &Accessor{block: block, file: file}
}

// Get returns the Level-1 value for physical band physBand at (row, col).
func (a *Accessor) Get(physBand, row, col int) (float64, error) {
	if a.block.inRAM(physBand, row) {
		pos := a.block.bandPos(physBand)
		return a.block.Data[pos][row-a.block.FirstRow][col], nil
	}
	return a.file.ReadCell(physBand, row, col)
}
