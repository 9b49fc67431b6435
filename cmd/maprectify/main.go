// Command maprectify implements the `map` command of spec.md §6: it
// georectifies a Level-1 push-broom hyperspectral cube onto a Level-3
// output grid using IGM ground-coordinate geometry, following
// cmd/geotiff2pmtiles/main.go's flat flag.FlagSet-driven CLI shape.
package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"

	"github.com/arsf/maprectify/internal/encode"
	"github.com/arsf/maprectify/internal/rectify/config"
	"github.com/arsf/maprectify/internal/rectify/engine"
	"github.com/arsf/maprectify/internal/rectify/geomprim"
	"github.com/arsf/maprectify/internal/rectify/progressui"
	"github.com/arsf/maprectify/internal/rectify/rasterio"
	"github.com/arsf/maprectify/internal/rectify/rectifyerr"
)

func main() {
	var cpuProfile, memProfile string
	for i, a := range os.Args[1:] {
		if a == "-cpuprofile" || a == "--cpuprofile" {
			if i+2 < len(os.Args) {
				cpuProfile = os.Args[i+2]
			}
		}
		if a == "-memprofile" || a == "--memprofile" {
			if i+2 < len(os.Args) {
				memProfile = os.Args[i+2]
			}
		}
	}
	args := stripProfileFlags(os.Args[1:])

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("creating CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("starting CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := config.Parse(args)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			log.Fatalf("writing memory profile: %v", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("writing memory profile: %v", err)
		}
	}
}

// stripProfileFlags removes "-cpuprofile <path>"/"-memprofile <path>"
// pairs before the rest reaches config.Parse's flag.FlagSet, since those
// two are handled here (profiling spans the whole invocation, including
// config parsing), per SPEC_FULL.md §2's carried-over profiling hooks.
func stripProfileFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch strings.TrimLeft(args[i], "-") {
		case "cpuprofile", "memprofile":
			i++ // skip the value too
		default:
			out = append(out, args[i])
		}
	}
	return out
}

func run(cfg *config.Config) error {
	igmFile, err := rasterio.Open(cfg.IGMPath)
	if err != nil {
		return err
	}
	defer igmFile.Close()
	level1File, err := rasterio.Open(cfg.Level1Path)
	if err != nil {
		return err
	}
	defer level1File.Close()

	bandPhysIdx, err := resolveBandList(cfg.BandList, level1File.Bands())
	if err != nil {
		return err
	}

	for _, row := range cfg.IgnoreScan {
		if row < 0 || row >= level1File.Rows() {
			return rectifyerr.NewConfigError("--ignorescan line %d is outside range of number of scans in file [0,%d)", row, level1File.Rows())
		}
	}

	grid, err := resolveGrid(cfg, igmFile)
	if err != nil {
		return err
	}

	fmt.Print(cfg.String())
	fmt.Printf("  %-18s %d x %d, %d band(s)\n", "Output grid:", grid.Rows, grid.Cols, len(bandPhysIdx))
	if !cfg.IgnoreDiskSpace {
		required := uint64(cfg.OutputDType.Size()) * uint64(len(bandPhysIdx)) * uint64(grid.Rows) * uint64(grid.Cols)
		fmt.Printf("  %-18s %s\n", "Required space:", progressui.FormatBytes(required))
	}

	var bar *progressui.Bar
	if cfg.OutputLevel != config.Standard {
		bar = progressui.New(grid.Rows, "rectifying")
	} else {
		bar = progressui.Silent(grid.Rows)
	}

	p := engine.Params{
		IGMPath: cfg.IGMPath, Level1Path: cfg.Level1Path, OutputPath: cfg.OutputPath,
		RowColMapPath: cfg.RowColMapPath,

		Grid:        grid,
		BandPhysIdx: bandPhysIdx,
		OutputDType: cfg.OutputDType,

		Interpolation:      cfg.Interpolation,
		IDWCount:           cfg.IDWCount,
		MaxInterpDistanceM: cfg.MaxInterpDistance,

		IgnoreValue:    cfg.IgnoreValue,
		NoData:         cfg.NoData,
		IgnoreScanRows: cfg.IgnoreScan,

		BufferBytes:     uint64(cfg.BufferMB) * 1024 * 1024,
		IgnoreDiskSpace: cfg.IgnoreDiskSpace,

		OutputHeaderExtra:    carriedHeader(level1File.Header()),
		RowColMapHeaderExtra: carriedHeader(igmFile.Header()),

		Progress: bar.OnRow,
	}

	if err := engine.Run(p); err != nil {
		return err
	}
	bar.Finish()

	if cfg.PreviewWebpPath != "" {
		if err := writePreview(cfg.OutputPath, cfg.PreviewWebpPath, bandPhysIdx); err != nil {
			return err
		}
	}

	fmt.Printf("Done: %s\n", cfg.OutputPath)
	return nil
}

// resolveBandList turns a 1-based CLI band list (nil meaning "ALL") into
// 0-based physical Level-1 band indices.
func resolveBandList(bandList []int, level1Bands int) ([]int, error) {
	if bandList == nil {
		out := make([]int, level1Bands)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, len(bandList))
	for i, b := range bandList {
		if b < 1 || b > level1Bands {
			return nil, rectifyerr.NewConfigError("--bandlist band %d out of range [1,%d]", b, level1Bands)
		}
		out[i] = b - 1
	}
	return out, nil
}

// resolveGrid builds the output GridInfo from the config, deriving the
// area from the IGM's own ground-coordinate extent when --area was not
// given (spec.md §6's documented default).
func resolveGrid(cfg *config.Config, igmFile rasterio.Reader) (geomprim.GridInfo, error) {
	minX, maxX, minY, maxY := cfg.MinX, cfg.MaxX, cfg.MinY, cfg.MaxY
	if minX == 0 && maxX == 0 && minY == 0 && maxY == 0 {
		var err error
		minX, maxX, minY, maxY, err = scanIGMExtent(igmFile)
		if err != nil {
			return geomprim.GridInfo{}, err
		}
	}

	rows, cols := cfg.Rows, cfg.Cols
	if rows == 0 {
		rows = int(math.Round((maxY - minY) / cfg.PixSizeY))
	}
	if cols == 0 {
		cols = int(math.Round((maxX - minX) / cfg.PixSizeX))
	}
	if rows <= 0 || cols <= 0 {
		return geomprim.GridInfo{}, rectifyerr.NewConfigError("output grid is degenerate (rows=%d cols=%d)", rows, cols)
	}

	geographic := isGeographic(igmFile.Header())

	return geomprim.GridInfo{
		TLX: minX, TLY: maxY,
		BRX: maxX, BRY: minY,
		PixSizeX: cfg.PixSizeX, PixSizeY: cfg.PixSizeY,
		Rows: rows, Cols: cols,
		Projection: igmFile.Header()["projection"],
		Geographic: geographic,
	}, nil
}

// carriedHeader copies the subset of a source raster's header fields
// that spec.md §6 names for round-tripping onto a derived output
// (wavelength, band names, map info, and the ignore value), grounded on
// the teacher's cog.GeoInfo/cog/tfw.go header-carrying pattern.
func carriedHeader(src map[string]string) map[string]string {
	out := make(map[string]string, 4)
	for _, key := range []string{"wavelength", "band names", "map info", "data ignore value"} {
		if v, ok := src[key]; ok {
			out[key] = v
		}
	}
	return out
}

func isGeographic(header map[string]string) bool {
	proj := strings.ToLower(header["projection"])
	return strings.Contains(proj, "geographic") || strings.Contains(proj, "lat/lon") || strings.Contains(proj, "longlat")
}

// scanIGMExtent reads every row of the IGM's X/Y bands to find the
// ground-coordinate bounding box, used when --area is not given.
func scanIGMExtent(igmFile rasterio.Reader) (minX, maxX, minY, maxY float64, err error) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64
	for r := 0; r < igmFile.Rows(); r++ {
		xs, err := igmFile.ReadBandLine(0, r)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		ys, err := igmFile.ReadBandLine(1, r)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		for c := range xs {
			if xs[c] < minX {
				minX = xs[c]
			}
			if xs[c] > maxX {
				maxX = xs[c]
			}
			if ys[c] < minY {
				minY = ys[c]
			}
			if ys[c] > maxY {
				maxY = ys[c]
			}
		}
	}
	return minX, maxX, minY, maxY, nil
}

// writePreview exports a quick-look WebP composite of the Level-3 output
// (the first one to three bands, min/max-stretched to 8 bits), reusing
// internal/encode the way the teacher's own tile pipeline does. This is
// the one piece of genuinely parallel work in the whole CLI (everything
// upstream of it is the strictly sequential, single-threaded row loop
// the resampling core requires), so row decoding is fanned out across
// runtime.NumCPU() workers the way transformPassthrough in the teacher's
// own tile transform pipeline fans out per-tile work: a channel of row
// indices feeding a fixed worker pool, errors collected on a buffered
// error channel.
func writePreview(outputPath, previewPath string, bandPhysIdx []int) error {
	out, err := rasterio.Open(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	nb := len(bandPhysIdx)
	if nb > 3 {
		nb = 3
	}
	rows, cols := out.Rows(), out.Cols()

	pixels := make([][][]float64, nb)
	for b := 0; b < nb; b++ {
		pixels[b] = make([][]float64, rows)
	}

	nWorkers := runtime.NumCPU()
	if nWorkers > rows {
		nWorkers = rows
	}
	if nWorkers < 1 {
		nWorkers = 1
	}

	rowCh := make(chan int, nWorkers*2)
	errCh := make(chan error, nWorkers)
	var wg sync.WaitGroup

	go func() {
		for r := 0; r < rows; r++ {
			rowCh <- r
		}
		close(rowCh)
	}()

	for w := 0; w < nWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rowCh {
				for b := 0; b < nb; b++ {
					row, err := out.ReadBandLine(b, r)
					if err != nil {
						select {
						case errCh <- fmt.Errorf("reading preview row %d band %d: %w", r, b, err):
						default:
						}
						return
					}
					pixels[b][r] = row
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return err
	}

	lo := make([]float64, nb)
	hi := make([]float64, nb)
	for b := 0; b < nb; b++ {
		lo[b], hi[b] = math.MaxFloat64, -math.MaxFloat64
		for r := 0; r < rows; r++ {
			for _, v := range pixels[b][r] {
				if v < lo[b] {
					lo[b] = v
				}
				if v > hi[b] {
					hi[b] = v
				}
			}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	stretch := func(v, lo, hi float64) uint8 {
		if hi <= lo {
			return 0
		}
		t := (v - lo) / (hi - lo)
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		return uint8(t * 255)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var rgb [3]uint8
			for b := 0; b < nb; b++ {
				rgb[b] = stretch(pixels[b][r][c], lo[b], hi[b])
			}
			if nb == 1 {
				rgb[1], rgb[2] = rgb[0], rgb[0]
			}
			img.Set(c, r, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}

	enc, err := encode.NewEncoder("webp", 80)
	if err != nil {
		return err
	}
	data, err := enc.Encode(img)
	if err != nil {
		return err
	}
	return os.WriteFile(previewPath, data, 0o644)
}
