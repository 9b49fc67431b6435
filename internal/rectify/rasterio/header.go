package rasterio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/arsf/maprectify/internal/rectify/dtype"
)

// envi data-type codes, as written/read in the ".hdr" sidecar.
const (
	enviByte   = 1
	enviInt16  = 2
	enviInt32  = 3
	enviFloat  = 4
	enviDouble = 5
	enviUInt16 = 12
	enviUInt32 = 13
)

func dtypeToEnvi(d dtype.DType) int {
	switch d {
	case dtype.U8:
		return enviByte
	case dtype.I16:
		return enviInt16
	case dtype.U16:
		return enviUInt16
	case dtype.I32:
		return enviInt32
	case dtype.U32:
		return enviUInt32
	case dtype.F32:
		return enviFloat
	case dtype.F64:
		return enviDouble
	default:
		panic("rasterio: unreachable dtype")
	}
}

func enviToDType(code int) (dtype.DType, error) {
	switch code {
	case enviByte:
		return dtype.U8, nil
	case enviInt16:
		return dtype.I16, nil
	case enviUInt16:
		return dtype.U16, nil
	case enviInt32:
		return dtype.I32, nil
	case enviUInt32:
		return dtype.U32, nil
	case enviFloat:
		return dtype.F32, nil
	case enviDouble:
		return dtype.F64, nil
	default:
		return 0, fmt.Errorf("unsupported ENVI data type code %d", code)
	}
}

// headerPath returns the ".hdr" sidecar path for a raster file.
func headerPath(dataPath string) string {
	if i := strings.LastIndex(dataPath, "."); i >= 0 {
		return dataPath[:i] + ".hdr"
	}
	return dataPath + ".hdr"
}

// readHeader parses an ENVI-style text header into a flat string map, plus
// the handful of fields every caller needs typed (rows/cols/bands/dtype).
func readHeader(path string) (rows, cols, bands int, dt dtype.DType, fields map[string]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	defer f.Close()

	fields = make(map[string]string)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "ENVI" || strings.HasPrefix(line, "{") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(strings.ToLower(parts[0]))
		val := strings.TrimSpace(parts[1])
		fields[key] = val
	}
	if err := sc.Err(); err != nil {
		return 0, 0, 0, 0, nil, err
	}

	rows, err = strconv.Atoi(fields["lines"])
	if err != nil {
		return 0, 0, 0, 0, nil, fmt.Errorf("missing/invalid 'lines' field: %w", err)
	}
	cols, err = strconv.Atoi(fields["samples"])
	if err != nil {
		return 0, 0, 0, 0, nil, fmt.Errorf("missing/invalid 'samples' field: %w", err)
	}
	bands, err = strconv.Atoi(fields["bands"])
	if err != nil {
		return 0, 0, 0, 0, nil, fmt.Errorf("missing/invalid 'bands' field: %w", err)
	}
	code, err := strconv.Atoi(fields["data type"])
	if err != nil {
		return 0, 0, 0, 0, nil, fmt.Errorf("missing/invalid 'data type' field: %w", err)
	}
	dt, err = enviToDType(code)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	return rows, cols, bands, dt, fields, nil
}

// writeHeader writes an ENVI-style text header, carrying through any
// extra fields the caller wants preserved (map info, band names,
// wavelength, data ignore value — spec.md §6) in addition to the
// mandatory dimension/dtype fields.
func writeHeader(path string, rows, cols, bands int, d dtype.DType, extra map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "ENVI")
	fmt.Fprintf(w, "samples = %d\n", cols)
	fmt.Fprintf(w, "lines = %d\n", rows)
	fmt.Fprintf(w, "bands = %d\n", bands)
	fmt.Fprintln(w, "header offset = 0")
	fmt.Fprintln(w, "file type = ENVI Standard")
	fmt.Fprintf(w, "data type = %d\n", dtypeToEnvi(d))
	fmt.Fprintln(w, "interleave = bil")
	fmt.Fprintln(w, "byte order = 0")

	for _, k := range []string{"map info", "projection", "band names", "wavelength", "data ignore value", "x start", "y start", "datum ellipsoid", "TreeGridSize"} {
		if v, ok := extra[k]; ok {
			fmt.Fprintf(w, "%s = %s\n", k, v)
		}
	}
	return w.Flush()
}
