package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // Also registers the "postgres" driver

	"echoframe/internal/config"
)

// PostgresDB implements the Database interface for PostgreSQL.
type PostgresDB struct {
	db           *sql.DB
	articles     ArticleRepository
	patterns     PatternRepository
	alerts       AlertRepository
	suppressions SuppressionRepository
}

// NewPostgresDB opens a PostgreSQL connection pool and verifies it.
func NewPostgresDB(cfg config.Database) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.articles = &postgresArticleRepo{db: db}
	pgDB.patterns = &postgresPatternRepo{db: db}
	pgDB.alerts = &postgresAlertRepo{db: db}
	pgDB.suppressions = &postgresSuppressionRepo{db: db}
	return pgDB, nil
}

func (p *PostgresDB) Articles() ArticleRepository         { return p.articles }
func (p *PostgresDB) Patterns() PatternRepository         { return p.patterns }
func (p *PostgresDB) Alerts() AlertRepository             { return p.alerts }
func (p *PostgresDB) Suppressions() SuppressionRepository { return p.suppressions }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// uniqueViolation is the Postgres error code for unique constraint conflicts.
const uniqueViolation = pq.ErrorCode("23505")

// classify maps driver errors onto the engine's error taxonomy. Integrity
// violations are permanent; everything else (connection loss, timeouts) is
// reported as retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolation {
			return ErrDuplicateAlert
		}
		if pqErr.Code.Class() == "23" {
			return err
		}
	}
	return &RetryableError{Err: err}
}
