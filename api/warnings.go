package api

import (
	"fmt"
	"sync"

	"github.com/flanksource/commons/logger"
)

// Warnings collects non-fatal degradations (font fallback, blank
// backgrounds) during one export. Identical messages are kept once.
// A nil *Warnings only logs.
type Warnings struct {
	mu    sync.Mutex
	items []string
	seen  map[string]bool
}

func (w *Warnings) Addf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if w == nil {
		logger.Warnf("%s", msg)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	if w.seen[msg] {
		return
	}
	w.seen[msg] = true
	w.items = append(w.items, msg)
	logger.Warnf("%s", msg)
}

func (w *Warnings) List() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.items...)
}
