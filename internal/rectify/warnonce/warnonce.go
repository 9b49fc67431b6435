// Package warnonce implements the "WarnOnce semantics for cell-rate
// messages" of spec.md §7: a warning that would otherwise fire once per
// output cell (out-of-range search points, bicubic extrapolation beyond
// the abscissa extremes) is logged only the first time its cause is seen,
// modelled on internal/tile/progress.go's pattern of a small mutex-guarded
// struct shared across the row loop.
package warnonce

import (
	"log"
	"sync"
)

// Warner logs each distinct cause at most once.
type Warner struct {
	mu   sync.Mutex
	seen map[string]bool
}

// New returns a ready Warner.
func New() *Warner {
	return &Warner{seen: make(map[string]bool)}
}

// Warn logs the message under cause, the first time cause is seen.
func (w *Warner) Warn(cause, format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[cause] {
		return
	}
	w.seen[cause] = true
	log.Printf(format, args...)
}

// Count returns how many distinct causes have fired, for tests.
func (w *Warner) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
