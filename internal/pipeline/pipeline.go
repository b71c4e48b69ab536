// Package pipeline orchestrates the evaluation flow: registry -> matcher ->
// scorer -> deduplicator -> emitter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"echoframe/internal/core"
	"echoframe/internal/dedup"
	"echoframe/internal/emitter"
	"echoframe/internal/logger"
	"echoframe/internal/matcher"
	"echoframe/internal/persistence"
	"echoframe/internal/registry"
	"echoframe/internal/scorer"
)

// Options wires the pipeline's collaborators and tuning knobs.
type Options struct {
	Registry    *registry.Registry
	Matcher     *matcher.Matcher
	Scorer      *scorer.Scorer
	Dedup       *dedup.Deduplicator
	Emitter     *emitter.Emitter
	Articles    persistence.ArticleRepository
	Alerts      persistence.AlertRepository
	MinScore    float64 // Candidates scoring below this never become alerts
	Concurrency int     // Parallel article evaluations
	BatchLimit  int     // Max articles per AnalyzeRecent pass
}

// Pipeline evaluates articles against the active pattern set. Matching and
// scoring are pure; only the dedup/emit tail touches storage.
type Pipeline struct {
	opts Options
}

// New creates a pipeline from the given options.
func New(opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchLimit < 1 {
		opts.BatchLimit = 100
	}
	return &Pipeline{opts: opts}
}

// Result summarizes one article's evaluation. Failures are per (article,
// pattern); they never abort the remaining patterns.
type Result struct {
	ArticleID  string
	Alerts     []*core.RiskAlert
	Suppressed int
	Failures   int
}

// BatchResult aggregates an AnalyzeRecent pass.
type BatchResult struct {
	Articles   int
	Alerts     int
	Suppressed int
	Failures   int
}

// warmPageSize bounds each alert page loaded during window warm-up.
const warmPageSize = 200

// WarmDedup rebuilds the near-duplicate history from alerts persisted within
// the lookback window, so suppression spans engine restarts instead of only
// one process lifetime. Re-adding entries a shared backend already holds is
// idempotent. Alerts whose article is gone are skipped.
func (p *Pipeline) WarmDedup(ctx context.Context, window time.Duration) error {
	since := time.Now().Add(-window)
	warmed := 0
	for offset := 0; ; offset += warmPageSize {
		alerts, err := p.opts.Alerts.List(ctx, persistence.AlertFilter{
			Since:  since,
			Limit:  warmPageSize,
			Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("load recent alerts: %w", err)
		}

		for i := range alerts {
			alert := &alerts[i]
			article, err := p.opts.Articles.Get(ctx, alert.ArticleID)
			if err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					continue
				}
				return fmt.Errorf("load article %s: %w", alert.ArticleID, err)
			}
			err = p.opts.Dedup.Serialize(alert.RiskPatternID, alert.Sector, func() error {
				return p.opts.Dedup.Record(ctx, alert, article)
			})
			if err != nil {
				return err
			}
			warmed++
		}

		if len(alerts) < warmPageSize {
			break
		}
	}

	logger.Debug("Dedup window warmed", map[string]interface{}{"entries": warmed})
	return nil
}

// EvaluateArticle runs the full flow for one article. Each pattern's
// candidate is independent; a persistence failure on one is logged and
// counted, and evaluation of the remaining patterns continues.
func (p *Pipeline) EvaluateArticle(ctx context.Context, article *core.Article) Result {
	result := Result{ArticleID: article.ID}

	patterns := p.opts.Registry.ActivePatterns()
	if len(patterns) == 0 {
		return result
	}
	byID := make(map[string]*core.RiskPattern, len(patterns))
	for i := range patterns {
		byID[patterns[i].ID] = &patterns[i]
	}

	candidates := p.opts.Matcher.Evaluate(article, patterns)
	for _, candidate := range candidates {
		pattern := byID[candidate.PatternID]
		score, level := p.opts.Scorer.Score(candidate, pattern)
		if score < p.opts.MinScore {
			continue
		}

		scored := &core.ScoredCandidate{
			Candidate: candidate,
			Article:   article,
			Pattern:   pattern,
			RiskScore: score,
			RiskLevel: level,
		}

		if err := p.commit(ctx, scored, &result); err != nil {
			logger.Error("Candidate evaluation failed", err, map[string]interface{}{
				"article":   article.ID,
				"pattern":   pattern.ID,
				"retryable": persistence.IsRetryable(err),
			})
			result.Failures++
		}
	}
	return result
}

// commit serializes the admit decision and the persist/record steps on the
// candidate's (pattern, sector) bucket, so concurrent evaluations of
// different articles cannot both pass the duplicate checks before either
// lands. The storage unique key remains the final arbiter.
func (p *Pipeline) commit(ctx context.Context, scored *core.ScoredCandidate, result *Result) error {
	return p.opts.Dedup.Serialize(scored.Pattern.ID, scored.Pattern.Sector, func() error {
		decision, err := p.opts.Dedup.Admit(ctx, scored)
		if err != nil {
			return err
		}

		alert, err := p.opts.Emitter.Emit(ctx, scored, decision)
		if err != nil {
			return err
		}
		if alert == nil {
			result.Suppressed++
			return nil
		}

		result.Alerts = append(result.Alerts, alert)
		return p.opts.Dedup.Record(ctx, alert, scored.Article)
	})
}

// AnalyzeRecent evaluates articles ingested since the given time, in
// parallel across articles with bounded concurrency. One article's failure
// never stops the batch.
func (p *Pipeline) AnalyzeRecent(ctx context.Context, since time.Time, limit int) (BatchResult, error) {
	if limit <= 0 || limit > p.opts.BatchLimit {
		limit = p.opts.BatchLimit
	}
	articles, err := p.opts.Articles.ListRecent(ctx, since, limit)
	if err != nil {
		return BatchResult{}, err
	}

	var (
		batch   BatchResult
		results = make([]Result, len(articles))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range articles {
		i := i
		g.Go(func() error {
			results[i] = p.EvaluateArticle(gctx, &articles[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		batch.Articles++
		batch.Alerts += len(r.Alerts)
		batch.Suppressed += r.Suppressed
		batch.Failures += r.Failures
	}

	logger.Info("Batch analysis finished", map[string]interface{}{
		"articles":   batch.Articles,
		"alerts":     batch.Alerts,
		"suppressed": batch.Suppressed,
		"failures":   batch.Failures,
	})
	return batch, nil
}
