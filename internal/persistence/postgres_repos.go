package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"echoframe/internal/core"
)

// psql builds queries with Postgres-style $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgresArticleRepo implements ArticleRepository for PostgreSQL.
type postgresArticleRepo struct {
	db *sql.DB
}

func (r *postgresArticleRepo) Create(ctx context.Context, article *core.Article) error {
	entitiesJSON, err := json.Marshal(article.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	query := `
		INSERT INTO articles (id, source_id, source_type, title, body, summary, url, published_at, language, entities, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		article.ID, article.SourceID, string(article.SourceType), article.Title, article.Body,
		article.Summary, article.URL, article.PublishedAt, article.Language, entitiesJSON,
		article.CreatedAt,
	)
	return classify(err)
}

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	query := `
		SELECT id, source_id, source_type, title, body, summary, url, published_at, language, entities, created_at
		FROM articles WHERE id = $1
	`
	return scanArticle(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresArticleRepo) ListRecent(ctx context.Context, since time.Time, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, source_id, source_type, title, body, summary, url, published_at, language, entities, created_at
		FROM articles WHERE created_at >= $1
		ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticleRow(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, classify(rows.Err())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row *sql.Row) (*core.Article, error) {
	article, err := scanArticleRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return article, err
}

func scanArticleRow(row rowScanner) (*core.Article, error) {
	var (
		article      core.Article
		sourceType   string
		entitiesJSON []byte
		publishedAt  sql.NullTime
	)
	err := row.Scan(&article.ID, &article.SourceID, &sourceType, &article.Title, &article.Body,
		&article.Summary, &article.URL, &publishedAt, &article.Language, &entitiesJSON, &article.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, classify(err)
	}
	article.SourceType = core.SourceType(sourceType)
	if publishedAt.Valid {
		article.PublishedAt = publishedAt.Time
	}
	if len(entitiesJSON) > 0 {
		if err := json.Unmarshal(entitiesJSON, &article.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
	}
	return &article, nil
}

// postgresPatternRepo implements PatternRepository for PostgreSQL.
type postgresPatternRepo struct {
	db *sql.DB
}

func (r *postgresPatternRepo) Upsert(ctx context.Context, pattern *core.RiskPattern) error {
	factorsJSON, err := json.Marshal(pattern.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	templateJSON, err := json.Marshal(pattern.Template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	query := `
		INSERT INTO risk_patterns (id, name, sector, pattern_type, keywords, factors, entity_types, risk_level, template, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    sector = EXCLUDED.sector,
		    pattern_type = EXCLUDED.pattern_type,
		    keywords = EXCLUDED.keywords,
		    factors = EXCLUDED.factors,
		    entity_types = EXCLUDED.entity_types,
		    risk_level = EXCLUDED.risk_level,
		    template = EXCLUDED.template,
		    active = EXCLUDED.active,
		    updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query,
		pattern.ID, pattern.Name, string(pattern.Sector), pattern.PatternType,
		pq.Array(pattern.Keywords), factorsJSON, pq.Array(pattern.EntityTypes),
		pattern.RiskLevel.String(), templateJSON, pattern.Active,
	)
	return classify(err)
}

func (r *postgresPatternRepo) ListActive(ctx context.Context) ([]core.RiskPattern, error) {
	query := `
		SELECT id, name, sector, pattern_type, keywords, factors, entity_types, risk_level, template, active
		FROM risk_patterns WHERE active = TRUE
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var patterns []core.RiskPattern
	for rows.Next() {
		var (
			p            core.RiskPattern
			sector       string
			level        string
			keywords     pq.StringArray
			entityTypes  pq.StringArray
			factorsJSON  []byte
			templateJSON []byte
		)
		err := rows.Scan(&p.ID, &p.Name, &sector, &p.PatternType, &keywords, &factorsJSON,
			&entityTypes, &level, &templateJSON, &p.Active)
		if err != nil {
			return nil, classify(err)
		}
		if p.Sector, err = core.ParseSector(sector); err != nil {
			return nil, err
		}
		if p.RiskLevel, err = core.ParseRiskLevel(level); err != nil {
			return nil, err
		}
		p.Keywords = keywords
		p.EntityTypes = entityTypes
		if err := json.Unmarshal(factorsJSON, &p.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
		}
		if err := json.Unmarshal(templateJSON, &p.Template); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, classify(rows.Err())
}

// postgresAlertRepo implements AlertRepository for PostgreSQL. Create relies
// on the risk_alerts_article_pattern_key unique constraint as the final
// arbiter of the at-most-one-alert invariant.
type postgresAlertRepo struct {
	db *sql.DB
}

func (r *postgresAlertRepo) Create(ctx context.Context, alert *core.RiskAlert) error {
	detailsJSON, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO risk_alerts (id, article_id, risk_pattern_id, risk_score, risk_level, sector, summary, details, is_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.ArticleID, alert.RiskPatternID, alert.RiskScore,
		alert.RiskLevel.String(), string(alert.Sector), alert.Summary, detailsJSON,
		alert.IsSent, alert.CreatedAt,
	)
	return classify(err)
}

func (r *postgresAlertRepo) Exists(ctx context.Context, articleID, patternID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM risk_alerts WHERE article_id = $1 AND risk_pattern_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, articleID, patternID).Scan(&exists); err != nil {
		return false, classify(err)
	}
	return exists, nil
}

func (r *postgresAlertRepo) List(ctx context.Context, filter AlertFilter) ([]core.RiskAlert, error) {
	builder := psql.Select("id", "article_id", "risk_pattern_id", "risk_score", "risk_level",
		"sector", "summary", "details", "is_sent", "created_at").
		From("risk_alerts").
		OrderBy("created_at DESC")

	if filter.Sector != nil {
		builder = builder.Where(sq.Eq{"sector": string(*filter.Sector)})
	}
	if filter.MinLevel != nil {
		builder = builder.Where(sq.Eq{"risk_level": levelsAtOrAbove(*filter.MinLevel)})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.Since})
	}
	if !filter.Until.IsZero() {
		builder = builder.Where(sq.Lt{"created_at": filter.Until})
	}
	if filter.Sent != nil {
		builder = builder.Where(sq.Eq{"is_sent": *filter.Sent})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit)).Offset(uint64(filter.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build alert query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var alerts []core.RiskAlert
	for rows.Next() {
		var (
			alert       core.RiskAlert
			level       string
			sector      string
			detailsJSON []byte
		)
		err := rows.Scan(&alert.ID, &alert.ArticleID, &alert.RiskPatternID, &alert.RiskScore,
			&level, &sector, &alert.Summary, &detailsJSON, &alert.IsSent, &alert.CreatedAt)
		if err != nil {
			return nil, classify(err)
		}
		if alert.RiskLevel, err = core.ParseRiskLevel(level); err != nil {
			return nil, err
		}
		alert.Sector = core.Sector(sector)
		if err := json.Unmarshal(detailsJSON, &alert.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, classify(rows.Err())
}

func (r *postgresAlertRepo) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE risk_alerts SET is_sent = TRUE WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	return classify(err)
}

// levelsAtOrAbove expands a minimum level into the stored level strings.
func levelsAtOrAbove(min core.RiskLevel) []string {
	var levels []string
	for lvl := min; lvl <= core.RiskLevelCritical; lvl++ {
		levels = append(levels, lvl.String())
	}
	return levels
}

// postgresSuppressionRepo implements SuppressionRepository for PostgreSQL.
type postgresSuppressionRepo struct {
	db *sql.DB
}

func (r *postgresSuppressionRepo) Create(ctx context.Context, s *core.Suppression) error {
	query := `
		INSERT INTO alert_suppressions (id, article_id, pattern_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.ArticleID, s.PatternID, s.Reason, s.CreatedAt)
	return classify(err)
}

func (r *postgresSuppressionRepo) ListByArticle(ctx context.Context, articleID string) ([]core.Suppression, error) {
	query := `
		SELECT id, article_id, pattern_id, reason, created_at
		FROM alert_suppressions WHERE article_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var suppressions []core.Suppression
	for rows.Next() {
		var s core.Suppression
		if err := rows.Scan(&s.ID, &s.ArticleID, &s.PatternID, &s.Reason, &s.CreatedAt); err != nil {
			return nil, classify(err)
		}
		suppressions = append(suppressions, s)
	}
	return suppressions, classify(rows.Err())
}
