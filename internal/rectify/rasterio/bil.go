package rasterio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/arsf/maprectify/internal/rectify/dtype"
)

// bilReader is the concrete Reader for a BIL-interleaved raster file with
// an ENVI-style ".hdr" sidecar. Random access goes straight to the
// computed byte offset via os.File.ReadAt; no caching is mandated by
// spec.md §4.1, so none is done here — a block-resident fast path lives
// one layer up, in internal/rectify/dataaccessor.
type bilReader struct {
	f          *os.File
	rows, cols, bands int
	dt         dtype.DType
	header     map[string]string
	rowBytes   int
	bandBytes  int
}

// Open opens a BIL raster for reading, parsing its ".hdr" sidecar.
func Open(path string) (Reader, error) {
	rows, cols, bands, dt, header, err := readHeader(headerPath(path))
	if err != nil {
		return nil, wrapOpen(path, err)
	}
	if err := checkDType(dt); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapOpen(path, err)
	}
	sz := dt.Size()
	return &bilReader{
		f: f, rows: rows, cols: cols, bands: bands, dt: dt, header: header,
		rowBytes:  cols * sz * bands,
		bandBytes: cols * sz,
	}, nil
}

func (r *bilReader) Rows() int               { return r.rows }
func (r *bilReader) Cols() int               { return r.cols }
func (r *bilReader) Bands() int              { return r.bands }
func (r *bilReader) DType() dtype.DType      { return r.dt }
func (r *bilReader) Header() map[string]string { return r.header }

func (r *bilReader) Close() error { return r.f.Close() }

func (r *bilReader) checkBounds(band, row int) error {
	if row < 0 || row >= r.rows {
		return fmt.Errorf("row %d out of range [0,%d)", row, r.rows)
	}
	if band < 0 || band >= r.bands {
		return fmt.Errorf("band %d out of range [0,%d)", band, r.bands)
	}
	return nil
}

func (r *bilReader) ReadBandLine(band, row int) ([]float64, error) {
	if err := r.checkBounds(band, row); err != nil {
		return nil, wrapRead("", err)
	}
	off := int64(row)*int64(r.rowBytes) + int64(band)*int64(r.bandBytes)
	buf := make([]byte, r.bandBytes)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return nil, wrapRead("", err)
	}
	return decodeSamples(buf, r.dt, r.cols), nil
}

func (r *bilReader) ReadLine(row int) ([]float64, error) {
	if row < 0 || row >= r.rows {
		return nil, wrapRead("", fmt.Errorf("row %d out of range [0,%d)", row, r.rows))
	}
	off := int64(row) * int64(r.rowBytes)
	buf := make([]byte, r.rowBytes)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return nil, wrapRead("", err)
	}
	return decodeSamples(buf, r.dt, r.cols*r.bands), nil
}

func (r *bilReader) ReadCell(band, row, col int) (float64, error) {
	if err := r.checkBounds(band, row); err != nil {
		return 0, wrapRead("", err)
	}
	if col < 0 || col >= r.cols {
		return 0, wrapRead("", fmt.Errorf("col %d out of range [0,%d)", col, r.cols))
	}
	sz := r.dt.Size()
	off := int64(row)*int64(r.rowBytes) + int64(band)*int64(r.bandBytes) + int64(col*sz)
	buf := make([]byte, sz)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return 0, wrapRead("", err)
	}
	return decodeSamples(buf, r.dt, 1)[0], nil
}

// bilWriter is the concrete Writer. The file is preallocated to its full
// size up front (Truncate), so both append-only WriteLine and positioned
// WriteRange are the same underlying WriteAt operation — matching
// bilwriter.cpp's fseek-based positioned writes (spec.md §5).
type bilWriter struct {
	f                 *os.File
	path              string
	rows, cols, bands int
	dt                dtype.DType
	rowBytes, bandBytes int
	nextRow           int
	header            map[string]string
	closed            bool
}

// OpenWriter creates a new BIL raster file of the given shape, preallocated
// to its final size, plus extra header fields to round-trip (map info,
// band names, wavelength, data ignore value — spec.md §6).
func OpenWriter(path string, d dtype.DType, rows, cols, bands int, extra map[string]string) (Writer, error) {
	if err := checkDType(d); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, wrapOpen(path, err)
	}
	sz := d.Size()
	rowBytes := cols * sz * bands
	total := int64(rowBytes) * int64(rows)
	if err := f.Truncate(total); err != nil {
		f.Close()
		return nil, wrapOpen(path, err)
	}
	hdr := make(map[string]string, len(extra))
	for k, v := range extra {
		hdr[k] = v
	}
	return &bilWriter{
		f: f, path: path, rows: rows, cols: cols, bands: bands, dt: d,
		rowBytes: rowBytes, bandBytes: cols * sz, header: hdr,
	}, nil
}

func (w *bilWriter) WriteLine(buf []float64) error {
	if w.nextRow >= w.rows {
		return wrapWrite(w.path, fmt.Errorf("WriteLine called past row count %d", w.rows))
	}
	if len(buf) != w.cols*w.bands {
		return wrapWrite(w.path, fmt.Errorf("WriteLine buffer length %d, want %d", len(buf), w.cols*w.bands))
	}
	off := int64(w.nextRow) * int64(w.rowBytes)
	enc := encodeSamples(buf, w.dt)
	if _, err := w.f.WriteAt(enc, off); err != nil {
		return wrapWrite(w.path, err)
	}
	w.nextRow++
	return nil
}

func (w *bilWriter) WriteRange(row, band, colLo, colHi int, buf []float64) error {
	n := colHi - colLo
	if n <= 0 || len(buf) != n {
		return wrapWrite(w.path, fmt.Errorf("WriteRange: bad range [%d,%d) for buffer len %d", colLo, colHi, len(buf)))
	}
	if row < 0 || row >= w.rows || band < 0 || band >= w.bands {
		return wrapWrite(w.path, fmt.Errorf("WriteRange: row/band out of range (row=%d band=%d)", row, band))
	}
	sz := w.dt.Size()
	off := int64(row)*int64(w.rowBytes) + int64(band)*int64(w.bandBytes) + int64(colLo*sz)
	enc := encodeSamples(buf, w.dt)
	if _, err := w.f.WriteAt(enc, off); err != nil {
		return wrapWrite(w.path, err)
	}
	return nil
}

func (w *bilWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		return wrapWrite(w.path, err)
	}
	if err := writeHeader(headerPath(w.path), w.rows, w.cols, w.bands, w.dt, w.header); err != nil {
		return wrapWrite(headerPath(w.path), err)
	}
	return nil
}

func decodeSamples(buf []byte, d dtype.DType, n int) []float64 {
	out := make([]float64, n)
	sz := d.Size()
	for i := 0; i < n; i++ {
		b := buf[i*sz : i*sz+sz]
		switch d {
		case dtype.U8:
			out[i] = float64(b[0])
		case dtype.I16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(b)))
		case dtype.U16:
			out[i] = float64(binary.LittleEndian.Uint16(b))
		case dtype.I32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case dtype.U32:
			out[i] = float64(binary.LittleEndian.Uint32(b))
		case dtype.F32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case dtype.F64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	return out
}

func encodeSamples(vals []float64, d dtype.DType) []byte {
	sz := d.Size()
	out := make([]byte, len(vals)*sz)
	for i, v := range vals {
		b := out[i*sz : i*sz+sz]
		switch d {
		case dtype.U8:
			b[0] = byte(uint8(v))
		case dtype.I16:
			binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		case dtype.U16:
			binary.LittleEndian.PutUint16(b, uint16(v))
		case dtype.I32:
			binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		case dtype.U32:
			binary.LittleEndian.PutUint32(b, uint32(v))
		case dtype.F32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case dtype.F64:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		}
	}
	return out
}
