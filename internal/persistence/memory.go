package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"echoframe/internal/core"
)

// MemoryDB is an in-memory Database used in tests and local runs without
// Postgres. It enforces the same (article_id, risk_pattern_id) unique key.
type MemoryDB struct {
	articles     *memoryArticleRepo
	patterns     *memoryPatternRepo
	alerts       *memoryAlertRepo
	suppressions *memorySuppressionRepo
}

// NewMemoryDB creates an empty in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		articles:     &memoryArticleRepo{articles: map[string]core.Article{}},
		patterns:     &memoryPatternRepo{patterns: map[string]core.RiskPattern{}},
		alerts:       &memoryAlertRepo{byPair: map[[2]string]string{}},
		suppressions: &memorySuppressionRepo{},
	}
}

func (m *MemoryDB) Articles() ArticleRepository         { return m.articles }
func (m *MemoryDB) Patterns() PatternRepository         { return m.patterns }
func (m *MemoryDB) Alerts() AlertRepository             { return m.alerts }
func (m *MemoryDB) Suppressions() SuppressionRepository { return m.suppressions }
func (m *MemoryDB) Ping(context.Context) error          { return nil }
func (m *MemoryDB) Close() error                        { return nil }

type memoryArticleRepo struct {
	mu       sync.RWMutex
	articles map[string]core.Article
}

func (r *memoryArticleRepo) Create(_ context.Context, article *core.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.articles[article.ID] = *article
	return nil
}

func (r *memoryArticleRepo) Get(_ context.Context, id string) (*core.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	article, ok := r.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &article, nil
}

func (r *memoryArticleRepo) ListRecent(_ context.Context, since time.Time, limit int) ([]core.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Article
	for _, article := range r.articles {
		if !article.CreatedAt.Before(since) {
			out = append(out, article)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryPatternRepo struct {
	mu       sync.RWMutex
	patterns map[string]core.RiskPattern
}

func (r *memoryPatternRepo) Upsert(_ context.Context, pattern *core.RiskPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns[pattern.ID] = *pattern
	return nil
}

func (r *memoryPatternRepo) ListActive(_ context.Context) ([]core.RiskPattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.RiskPattern
	for _, p := range r.patterns {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryAlertRepo struct {
	mu     sync.RWMutex
	alerts []core.RiskAlert
	byPair map[[2]string]string // (article_id, pattern_id) -> alert id
}

func (r *memoryAlertRepo) Create(_ context.Context, alert *core.RiskAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{alert.ArticleID, alert.RiskPatternID}
	if _, exists := r.byPair[key]; exists {
		return ErrDuplicateAlert
	}
	r.byPair[key] = alert.ID
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *memoryAlertRepo) Exists(_ context.Context, articleID, patternID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.byPair[[2]string{articleID, patternID}]
	return exists, nil
}

func (r *memoryAlertRepo) List(_ context.Context, filter AlertFilter) ([]core.RiskAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.RiskAlert
	for _, alert := range r.alerts {
		if filter.Sector != nil && alert.Sector != *filter.Sector {
			continue
		}
		if filter.MinLevel != nil && alert.RiskLevel < *filter.MinLevel {
			continue
		}
		if !filter.Since.IsZero() && alert.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !alert.CreatedAt.Before(filter.Until) {
			continue
		}
		if filter.Sent != nil && alert.IsSent != *filter.Sent {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryAlertRepo) MarkSent(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	for i := range r.alerts {
		if _, ok := idSet[r.alerts[i].ID]; ok {
			r.alerts[i].IsSent = true
		}
	}
	return nil
}

type memorySuppressionRepo struct {
	mu           sync.RWMutex
	suppressions []core.Suppression
}

func (r *memorySuppressionRepo) Create(_ context.Context, s *core.Suppression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressions = append(r.suppressions, *s)
	return nil
}

func (r *memorySuppressionRepo) ListByArticle(_ context.Context, articleID string) ([]core.Suppression, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Suppression
	for _, s := range r.suppressions {
		if s.ArticleID == articleID {
			out = append(out, s)
		}
	}
	return out, nil
}
