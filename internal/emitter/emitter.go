// Package emitter persists accepted candidates as risk alerts and records an
// audit entry for every suppression.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"echoframe/internal/core"
	"echoframe/internal/logger"
	"echoframe/internal/persistence"
)

// Emitter finalizes deduplicator decisions. It is the only component that
// writes alerts.
type Emitter struct {
	alerts       persistence.AlertRepository
	suppressions persistence.SuppressionRepository
	now          func() time.Time
}

// New creates an emitter on top of the alert and suppression repositories.
func New(alerts persistence.AlertRepository, suppressions persistence.SuppressionRepository) *Emitter {
	return &Emitter{alerts: alerts, suppressions: suppressions, now: time.Now}
}

// Emit persists the outcome of a decision. On Accept it builds and stores a
// RiskAlert and returns it. On any suppress decision it records the
// suppression reason and returns nil.
//
// A unique-key conflict during the insert means another evaluation committed
// first; it is converted into a SuppressExactDuplicate outcome rather than an
// error. Transient persistence failures are returned as retryable errors for
// the caller to handle; the emitter never retries internally.
func (e *Emitter) Emit(ctx context.Context, scored *core.ScoredCandidate, decision core.Decision) (*core.RiskAlert, error) {
	if decision != core.Accept {
		return nil, e.recordSuppression(ctx, scored, decision)
	}

	alert := e.buildAlert(scored)
	if err := e.alerts.Create(ctx, alert); err != nil {
		if errors.Is(err, persistence.ErrDuplicateAlert) {
			return nil, e.recordSuppression(ctx, scored, core.SuppressExactDuplicate)
		}
		return nil, fmt.Errorf("persist alert for article %s pattern %s: %w",
			scored.Candidate.ArticleID, scored.Candidate.PatternID, err)
	}

	logger.Info("Alert created", map[string]interface{}{
		"alert":      alert.ID,
		"article":    alert.ArticleID,
		"pattern":    alert.RiskPatternID,
		"risk_level": alert.RiskLevel.String(),
		"risk_score": alert.RiskScore,
	})
	return alert, nil
}

func (e *Emitter) buildAlert(scored *core.ScoredCandidate) *core.RiskAlert {
	pattern := scored.Pattern
	return &core.RiskAlert{
		ID:            uuid.New().String(),
		ArticleID:     scored.Candidate.ArticleID,
		RiskPatternID: pattern.ID,
		RiskScore:     scored.RiskScore,
		RiskLevel:     scored.RiskLevel,
		Sector:        pattern.Sector,
		Summary:       buildSummary(scored),
		Details: core.AlertDetails{
			PatternType:     pattern.PatternType,
			KeywordsMatched: scored.Candidate.Keywords,
			Signals:         scored.Candidate.Signals,
			Excerpt:         scored.Candidate.Excerpt,
			SourceID:        sourceID(scored.Article),
		},
		IsSent:    false,
		CreatedAt: e.now().UTC(),
	}
}

// buildSummary produces the deterministic Spanish alert summary.
func buildSummary(scored *core.ScoredCandidate) string {
	return fmt.Sprintf("Riesgo %s detectado en %s para sector %s: %s",
		scored.RiskLevel, scored.Pattern.PatternType, scored.Pattern.Sector, title(scored.Article))
}

func (e *Emitter) recordSuppression(ctx context.Context, scored *core.ScoredCandidate, decision core.Decision) error {
	suppression := &core.Suppression{
		ID:        uuid.New().String(),
		ArticleID: scored.Candidate.ArticleID,
		PatternID: scored.Candidate.PatternID,
		Reason:    decision.String(),
		CreatedAt: e.now().UTC(),
	}
	if err := e.suppressions.Create(ctx, suppression); err != nil {
		return fmt.Errorf("record suppression for article %s pattern %s: %w",
			suppression.ArticleID, suppression.PatternID, err)
	}
	logger.Debug("Alert suppressed", map[string]interface{}{
		"article": suppression.ArticleID,
		"pattern": suppression.PatternID,
		"reason":  suppression.Reason,
	})
	return nil
}

// title truncates long titles on a rune boundary so accented Spanish text
// never yields invalid UTF-8 in the summary.
func title(article *core.Article) string {
	if article == nil {
		return ""
	}
	const max = 120
	runes := []rune(article.Title)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return article.Title
}

func sourceID(article *core.Article) string {
	if article == nil {
		return ""
	}
	return article.SourceID
}
