// Package persistence provides database interfaces and implementations for
// the risk engine's stored state.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echoframe/internal/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateAlert is returned when inserting an alert that violates the
// (article_id, risk_pattern_id) unique key. Callers treat it as an exact
// duplicate suppression, never as a failure.
var ErrDuplicateAlert = errors.New("alert already exists for article/pattern pair")

// RetryableError wraps transient persistence failures (connection loss,
// timeouts). The engine performs no internal retries; the wrapper tells the
// caller a retry may succeed.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable persistence error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// AlertFilter narrows alert queries for downstream consumers.
type AlertFilter struct {
	Sector   *core.Sector    // Only alerts for this sector
	MinLevel *core.RiskLevel // Only alerts at or above this level
	Since    time.Time       // Only alerts created at or after this time
	Until    time.Time       // Only alerts created before this time
	Sent     *bool           // Filter by sent-status
	Limit    int
	Offset   int
}

// ArticleRepository stores ingested articles. The engine only reads them;
// writes come from the (external) ingestion side.
type ArticleRepository interface {
	Create(ctx context.Context, article *core.Article) error
	Get(ctx context.Context, id string) (*core.Article, error)
	ListRecent(ctx context.Context, since time.Time, limit int) ([]core.Article, error)
}

// PatternRepository stores risk pattern definitions.
type PatternRepository interface {
	Upsert(ctx context.Context, pattern *core.RiskPattern) error
	ListActive(ctx context.Context) ([]core.RiskPattern, error)
}

// AlertRepository stores risk alerts. Create must enforce the
// (article_id, risk_pattern_id) unique key and return ErrDuplicateAlert on
// conflict.
type AlertRepository interface {
	Create(ctx context.Context, alert *core.RiskAlert) error
	Exists(ctx context.Context, articleID, patternID string) (bool, error)
	List(ctx context.Context, filter AlertFilter) ([]core.RiskAlert, error)
	MarkSent(ctx context.Context, ids []string) error
}

// SuppressionRepository stores the audit record written for every suppress
// decision.
type SuppressionRepository interface {
	Create(ctx context.Context, suppression *core.Suppression) error
	ListByArticle(ctx context.Context, articleID string) ([]core.Suppression, error)
}

// Database bundles the repositories behind one connection.
type Database interface {
	Articles() ArticleRepository
	Patterns() PatternRepository
	Alerts() AlertRepository
	Suppressions() SuppressionRepository
	Ping(ctx context.Context) error
	Close() error
}
