package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS codesense_audit (
	id               BIGSERIAL PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL,
	input_length     INTEGER NOT NULL,
	pii_detected     BOOLEAN NOT NULL,
	mode             TEXT NOT NULL,
	response_preview TEXT NOT NULL DEFAULT ''
)`

// PostgresStore keeps the log in the codesense_audit table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewPostgresStore connects, sizes the pool and creates the table if needed.
func NewPostgresStore(cfg config.AuditPostgresConfig, log *logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := NewPostgresStoreWithDB(db, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Info("Postgres audit store initialized",
		zap.String("database_url", logger.MaskURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return store, nil
}

// NewPostgresStoreWithDB wraps an open handle without touching the schema.
func NewPostgresStoreWithDB(db *sqlx.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log.WithComponent("audit")}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, row Row) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO codesense_audit (created_at, input_length, pii_detected, mode, response_preview)
		VALUES (:created_at, :input_length, :pii_detected, :mode, :response_preview)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}
	return nil
}

func (s *PostgresStore) Tail(ctx context.Context, n int) ([]Row, error) {
	if n <= 0 {
		return []Row{}, nil
	}

	rows := []Row{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT created_at, input_length, pii_detected, mode, response_preview FROM (
			SELECT id, created_at, input_length, pii_detected, mode, response_preview
			FROM codesense_audit ORDER BY id DESC LIMIT $1
		) recent ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit rows: %w", err)
	}

	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC()
	}
	return rows, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
