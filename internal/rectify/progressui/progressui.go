// Package progressui drives a terminal progress meter for `--outputlevel
// verbose`/`debug`, built on github.com/schollz/progressbar/v3 — the
// library used for pmtiles extract's own row/byte progress meter in the
// retrieved pack — replacing the teacher's own hand-rolled
// internal/tile/progress.go ticker (SPEC_FULL.md §2).
package progressui

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Bar wraps a row-count progress bar; a nil *Bar is valid and a no-op, so
// callers don't need to branch on --outputlevel themselves.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New builds a Bar reporting progress toward totalRows output rows. It
// writes to os.Stderr so it never interleaves with the settings summary
// or final report on stdout.
func New(totalRows int, label string) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(totalRows,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("rows/s"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		),
	}
}

// Silent returns a Bar that discards all updates, for --outputlevel
// standard where no progress meter should print.
func Silent(totalRows int) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(totalRows, progressbar.OptionSetWriter(io.Discard)),
	}
}

// OnRow is an engine.Params.Progress-shaped hook: set row to the
// absolute row index just completed (1-based count), total to the grid's
// row count.
func (b *Bar) OnRow(row, total int) {
	if b == nil || b.bar == nil {
		return
	}
	b.bar.Set(row)
}

// Finish closes out the bar, called once Run returns successfully.
func (b *Bar) Finish() {
	if b == nil || b.bar == nil {
		return
	}
	b.bar.Finish()
}

// FormatBytes renders n bytes human-readably (e.g. "512 MB"), used for
// the CLI's required-output-space summary line.
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}
