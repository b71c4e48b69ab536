// Package dedup enforces the at-most-one-alert invariant per (article,
// pattern) pair and suppresses near-duplicate alerts for the same event
// reported by multiple outlets.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"echoframe/internal/core"
	"echoframe/internal/matcher"
)

// AlertChecker answers whether an alert already exists for an (article,
// pattern) pair. Implemented by the persistence layer.
type AlertChecker interface {
	Exists(ctx context.Context, articleID, patternID string) (bool, error)
}

// WindowEntry is one accepted alert kept in the recent-history window.
type WindowEntry struct {
	AlertID   string    `json:"alert_id"`
	PatternID string    `json:"pattern_id"`
	Sector    string    `json:"sector"`
	Tokens    []string  `json:"tokens"` // Normalized title/summary token set
	CreatedAt time.Time `json:"created_at"`
}

// RecentWindow is the bounded history consulted for near-duplicate checks.
// Lookups are scoped to one (pattern, sector) bucket and to the configured
// time window, keeping the check O(window size).
type RecentWindow interface {
	Add(ctx context.Context, entry WindowEntry) error
	MaxSimilarity(ctx context.Context, patternID string, sector core.Sector, tokens []string) (float64, error)
}

// Deduplicator decides whether a scored candidate becomes an alert. The
// check is an early exit; the storage unique key on (article_id,
// risk_pattern_id) remains the final arbiter.
type Deduplicator struct {
	alerts     AlertChecker
	window     RecentWindow
	similarity float64

	mu      sync.Mutex
	buckets map[string]*sync.Mutex
}

// New creates a deduplicator. similarity is the token-set overlap at or above
// which two articles are judged to describe the same event.
func New(alerts AlertChecker, window RecentWindow, similarity float64) *Deduplicator {
	return &Deduplicator{
		alerts:     alerts,
		window:     window,
		similarity: similarity,
		buckets:    map[string]*sync.Mutex{},
	}
}

// Serialize runs fn while holding the (pattern, sector) bucket lock. Callers
// wrap the admit decision and the subsequent persist/record steps in it so
// two concurrent evaluations of different articles against the same pattern
// cannot both pass the checks before either commits.
func (d *Deduplicator) Serialize(patternID string, sector core.Sector, fn func() error) error {
	mu := d.bucket(patternID, sector)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// Admit decides the fate of a scored candidate. Callers must hold the
// candidate's bucket via Serialize.
func (d *Deduplicator) Admit(ctx context.Context, scored *core.ScoredCandidate) (core.Decision, error) {
	exists, err := d.alerts.Exists(ctx, scored.Candidate.ArticleID, scored.Candidate.PatternID)
	if err != nil {
		return core.Accept, fmt.Errorf("exact duplicate check: %w", err)
	}
	if exists {
		return core.SuppressExactDuplicate, nil
	}

	best, err := d.window.MaxSimilarity(ctx, scored.Pattern.ID, scored.Pattern.Sector, articleTokens(scored.Article))
	if err != nil {
		return core.Accept, fmt.Errorf("near duplicate check: %w", err)
	}
	if best >= d.similarity {
		return core.SuppressNearDuplicate, nil
	}
	return core.Accept, nil
}

// Record adds an accepted alert to the recent-history window. Callers must
// still hold the bucket via Serialize.
func (d *Deduplicator) Record(ctx context.Context, alert *core.RiskAlert, article *core.Article) error {
	return d.window.Add(ctx, WindowEntry{
		AlertID:   alert.ID,
		PatternID: alert.RiskPatternID,
		Sector:    string(alert.Sector),
		Tokens:    articleTokens(article),
		CreatedAt: alert.CreatedAt,
	})
}

func (d *Deduplicator) bucket(patternID string, sector core.Sector) *sync.Mutex {
	key := patternID + "|" + string(sector)
	d.mu.Lock()
	defer d.mu.Unlock()
	mu, ok := d.buckets[key]
	if !ok {
		mu = &sync.Mutex{}
		d.buckets[key] = mu
	}
	return mu
}

// articleTokens builds the token set compared for near-duplicate detection:
// the title, falling back to the summary when the title is empty.
func articleTokens(article *core.Article) []string {
	if article == nil {
		return nil
	}
	text := article.Title
	if text == "" {
		text = article.Summary
	}
	return matcher.TokenSet(text)
}

// Jaccard computes token-set similarity in [0,1].
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
