// Package config parses and validates the `map` command's CLI surface
// (spec.md §6/SPEC_FULL.md §7) into an engine.Params-shaped Config,
// following the teacher's own flat, flag.FlagSet-driven option parse
// (cmd/geotiff2pmtiles/main.go) rather than a config file or env vars —
// SPEC_FULL.md §2's "all configuration arrives via CLI flags" ambient
// stack decision.
package config

import (
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arsf/maprectify/internal/rectify/dtype"
	"github.com/arsf/maprectify/internal/rectify/engine"
	"github.com/arsf/maprectify/internal/rectify/rectifyerr"
)

// OutputLevel mirrors --outputlevel's three verbosity tiers.
type OutputLevel int

const (
	Standard OutputLevel = iota
	Verbose
	Debug
)

func (o OutputLevel) String() string {
	switch o {
	case Verbose:
		return "verbose"
	case Debug:
		return "debug"
	default:
		return "standard"
	}
}

// Config is the fully parsed and validated `map` command invocation.
type Config struct {
	IGMPath, Level1Path string
	OutputPath          string
	RowColMapPath       string
	PreviewWebpPath     string

	BandList []int // 1-based band numbers as given on the CLI

	PixSizeX, PixSizeY float64
	MinX, MaxX, MinY, MaxY float64
	Rows, Cols             int // 0 means "derive from area/pixelsize"

	Interpolation      engine.Interpolation
	IDWCount           int
	MaxInterpDistance  float64

	BufferMB int

	OutputDType dtype.DType

	IgnoreScan  []int
	IgnoreValue float64 // math.NaN() for "NONE"
	NoData      float64

	IgnoreDiskSpace bool
	OutputLevel     OutputLevel
}

// Parse parses args (excluding the program name) into a validated Config.
// All parse/validation failures are rectifyerr.ConfigError.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("map", flag.ContinueOnError)

	var (
		igm, lev1, mapname                string
		bandlist                          string
		pixelsize                         string
		area                              string
		interpolation                     string
		buffersize                       int
		maxinterpdistance                float64
		outputdatatype                   string
		ignorescan                        string
		ignorevalue                       string
		nodata                            float64
		rowcolmap                         string
		ignorediskspace                   bool
		outputlevel                       string
		previewWebp                       string
	)

	fs.StringVar(&igm, "igm", "", "path to the IGM raster (required)")
	fs.StringVar(&lev1, "lev1", "", "path to the Level-1 raster (required)")
	fs.StringVar(&mapname, "mapname", "", "path to the Level-3 output raster (required)")
	fs.StringVar(&bandlist, "bandlist", "ALL", `bands to map: "ALL", "a-b", or a space-separated 1-based list`)
	fs.StringVar(&pixelsize, "pixelsize", "", "output pixel size \"sx sy\" (required)")
	fs.StringVar(&area, "area", "", "output area \"minx maxx miny maxy [rows cols]\" (default: derived from the IGM extent)")
	fs.StringVar(&interpolation, "interpolation", "bilinear", "nearest|bilinear|bilinearlev1|idw N|cubic")
	fs.IntVar(&buffersize, "buffersize", 512, "RAM budget per segment, in MB")
	fs.Float64Var(&maxinterpdistance, "maxinterpdistance", 0, "max interpolation distance in metres; farther samples are not used, so 0 keeps only samples at zero distance")
	fs.StringVar(&outputdatatype, "outputdatatype", "float32", "uchar8|int16|uint16|int32|uint32|float32|float64")
	fs.StringVar(&ignorescan, "ignorescan", "", "space-separated 0-based Level-1 scan line numbers to drop (known-bad/dropped scans)")
	fs.StringVar(&ignorevalue, "ignorevalue", "NONE", "Level-1 ignore value, or NONE")
	fs.Float64Var(&nodata, "nodata", 0, "output no-data fill value")
	fs.StringVar(&rowcolmap, "rowcolmap", "", "optional path for the (igm_row, igm_col) map, nearest-neighbour only")
	fs.BoolVar(&ignorediskspace, "ignorediskspace", false, "skip the pre-flight free-disk-space check")
	fs.StringVar(&outputlevel, "outputlevel", "standard", "standard|verbose|debug")
	fs.StringVar(&previewWebp, "preview-webp", "", "optional quick-look WebP preview of the output raster")

	if err := fs.Parse(args); err != nil {
		return nil, rectifyerr.WrapConfigError("parsing flags", err)
	}

	if igm == "" || lev1 == "" || mapname == "" {
		return nil, rectifyerr.NewConfigError("--igm, --lev1 and --mapname are all required")
	}

	cfg := &Config{
		IGMPath: igm, Level1Path: lev1, OutputPath: mapname,
		RowColMapPath:   rowcolmap,
		PreviewWebpPath: previewWebp,
		BufferMB:        buffersize,
		MaxInterpDistance: maxinterpdistance,
		NoData:          nodata,
		IgnoreDiskSpace: ignorediskspace,
	}

	bandList, err := parseBandList(bandlist)
	if err != nil {
		return nil, err
	}
	cfg.BandList = bandList

	if pixelsize == "" {
		return nil, rectifyerr.NewConfigError("--pixelsize is required")
	}
	psx, psy, err := parsePair(pixelsize, "--pixelsize")
	if err != nil {
		return nil, err
	}
	cfg.PixSizeX, cfg.PixSizeY = psx, psy

	if area != "" {
		if err := cfg.parseArea(area); err != nil {
			return nil, err
		}
	}

	interp, idwK, err := parseInterpolation(interpolation)
	if err != nil {
		return nil, err
	}
	cfg.Interpolation, cfg.IDWCount = interp, idwK

	dt, err := dtype.ParseOutputDType(outputdatatype)
	if err != nil {
		return nil, rectifyerr.WrapConfigError("--outputdatatype", err)
	}
	cfg.OutputDType = dt

	if ignorescan != "" {
		scan, err := parseIntList(ignorescan, "--ignorescan")
		if err != nil {
			return nil, err
		}
		cfg.IgnoreScan = scan
	}

	iv, err := parseIgnoreValue(ignorevalue)
	if err != nil {
		return nil, err
	}
	cfg.IgnoreValue = iv

	lvl, err := parseOutputLevel(outputlevel)
	if err != nil {
		return nil, err
	}
	cfg.OutputLevel = lvl

	if cfg.RowColMapPath != "" && cfg.Interpolation != engine.Nearest {
		return nil, rectifyerr.NewConfigError("--rowcolmap is only honoured under nearest-neighbour interpolation")
	}

	return cfg, nil
}

func (c *Config) parseArea(s string) error {
	fields := strings.Fields(s)
	if len(fields) != 4 && len(fields) != 6 {
		return rectifyerr.NewConfigError("--area needs \"minx maxx miny maxy [rows cols]\", got %q", s)
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return rectifyerr.WrapConfigError("--area", err)
		}
		vals[i] = v
	}
	c.MinX, c.MaxX, c.MinY, c.MaxY = vals[0], vals[1], vals[2], vals[3]
	if c.MinX >= c.MaxX || c.MinY >= c.MaxY {
		return rectifyerr.NewConfigError("--area bounds must satisfy minx < maxx and miny < maxy, got %q", s)
	}
	if len(fields) == 6 {
		rows, err := strconv.Atoi(fields[4])
		if err != nil {
			return rectifyerr.WrapConfigError("--area rows", err)
		}
		cols, err := strconv.Atoi(fields[5])
		if err != nil {
			return rectifyerr.WrapConfigError("--area cols", err)
		}
		c.Rows, c.Cols = rows, cols
	}
	return nil
}

func parsePair(s, flagName string) (a, b float64, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, rectifyerr.NewConfigError("%s needs two numbers \"sx sy\", got %q", flagName, s)
	}
	a, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, rectifyerr.WrapConfigError(flagName, err)
	}
	b, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, rectifyerr.WrapConfigError(flagName, err)
	}
	if a <= 0 || b <= 0 {
		return 0, 0, rectifyerr.NewConfigError("%s values must be positive, got %q", flagName, s)
	}
	return a, b, nil
}

func parseIntList(s, flagName string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, rectifyerr.WrapConfigError(flagName, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseBandList implements spec.md §6's "ALL" | "a-b" | space-separated
// 1-based list grammar.
func parseBandList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "ALL") {
		return nil, nil // nil means "all bands"; resolved once the Level-1 band count is known
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok && !strings.ContainsAny(s, " \t") {
		loN, err1 := strconv.Atoi(strings.TrimSpace(lo))
		hiN, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || loN < 1 || hiN < loN {
			return nil, rectifyerr.NewConfigError("--bandlist range %q is invalid", s)
		}
		out := make([]int, 0, hiN-loN+1)
		for b := loN; b <= hiN; b++ {
			out = append(out, b)
		}
		return out, nil
	}
	return parseIntList(s, "--bandlist")
}

// parseInterpolation parses "{nearest|bilinear|bilinearlev1|idw N|cubic}".
func parseInterpolation(s string) (engine.Interpolation, int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, rectifyerr.NewConfigError("--interpolation is required")
	}
	switch strings.ToLower(fields[0]) {
	case "nearest":
		return engine.Nearest, 0, nil
	case "bilinear":
		return engine.Bilinear, 0, nil
	case "bilinearlev1":
		return engine.BilinearLev1, 0, nil
	case "cubic":
		return engine.Cubic, 0, nil
	case "idw":
		if len(fields) != 2 {
			return 0, 0, rectifyerr.NewConfigError("--interpolation idw requires a sample count, e.g. \"idw 8\"")
		}
		k, err := strconv.Atoi(fields[1])
		if err != nil || k < 1 {
			return 0, 0, rectifyerr.NewConfigError("--interpolation idw N requires a positive integer N, got %q", fields[1])
		}
		return engine.IDW, k, nil
	default:
		return 0, 0, rectifyerr.NewConfigError("unknown --interpolation %q", s)
	}
}

func parseIgnoreValue(s string) (float64, error) {
	if strings.EqualFold(s, "NONE") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, rectifyerr.WrapConfigError("--ignorevalue", err)
	}
	return v, nil
}

func parseOutputLevel(s string) (OutputLevel, error) {
	switch strings.ToLower(s) {
	case "standard", "":
		return Standard, nil
	case "verbose":
		return Verbose, nil
	case "debug":
		return Debug, nil
	default:
		return 0, rectifyerr.NewConfigError("unknown --outputlevel %q", s)
	}
}

// String renders the effective settings summary the CLI prints on
// startup (teacher idiom: cmd/geotiff2pmtiles/main.go prints a settings
// block before starting work).
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %-18s %s\n", "IGM:", c.IGMPath)
	fmt.Fprintf(&b, "  %-18s %s\n", "Level-1:", c.Level1Path)
	fmt.Fprintf(&b, "  %-18s %s\n", "Output:", c.OutputPath)
	fmt.Fprintf(&b, "  %-18s %g x %g\n", "Pixel size:", c.PixSizeX, c.PixSizeY)
	fmt.Fprintf(&b, "  %-18s %s\n", "Interpolation:", c.Interpolation)
	fmt.Fprintf(&b, "  %-18s %s\n", "Output dtype:", c.OutputDType)
	fmt.Fprintf(&b, "  %-18s %d MB\n", "Buffer:", c.BufferMB)
	return b.String()
}
