package dedup

import (
	"context"
	"sync"
	"time"

	"echoframe/internal/core"
)

// MemoryWindow is the in-process recent-alert history. Entries older than the
// window are pruned on every access, so a bucket never grows past the alerts
// accepted within the window.
type MemoryWindow struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string][]WindowEntry
}

// NewMemoryWindow creates an in-memory window covering the given duration.
func NewMemoryWindow(window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		window:  window,
		now:     time.Now,
		entries: map[string][]WindowEntry{},
	}
}

// Add stores an accepted alert in its (pattern, sector) bucket.
func (w *MemoryWindow) Add(_ context.Context, entry WindowEntry) error {
	key := bucketKey(entry.PatternID, core.Sector(entry.Sector))
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = append(w.prune(w.entries[key]), entry)
	return nil
}

// MaxSimilarity returns the highest token-set similarity between the given
// tokens and any entry in the (pattern, sector) bucket within the window.
func (w *MemoryWindow) MaxSimilarity(_ context.Context, patternID string, sector core.Sector, tokens []string) (float64, error) {
	key := bucketKey(patternID, sector)
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.prune(w.entries[key])
	w.entries[key] = kept

	best := 0.0
	for _, entry := range kept {
		if sim := Jaccard(tokens, entry.Tokens); sim > best {
			best = sim
		}
	}
	return best, nil
}

func (w *MemoryWindow) prune(entries []WindowEntry) []WindowEntry {
	cutoff := w.now().Add(-w.window)
	kept := entries[:0]
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

func bucketKey(patternID string, sector core.Sector) string {
	return patternID + "|" + string(sector)
}
