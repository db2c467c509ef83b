package healthrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/biofeedback/internal/domain/health"
)

// PostgresRepository persists samples in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the samples table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS health_samples (
			id         UUID PRIMARY KEY,
			kind       TEXT NOT NULL,
			value      DOUBLE PRECISION NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_health_samples_kind_start ON health_samples (kind, start_date);
	`)
	return err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Insert(ctx context.Context, samples ...health.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(`
			INSERT INTO health_samples (id, kind, value, start_date, end_date)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, s.ID, string(s.Kind), s.Value, s.StartDate, s.EndDate)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert samples: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, kind health.SignalKind, start, end time.Time) ([]health.Sample, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, kind, value, start_date, end_date
		FROM health_samples
		WHERE kind = $1 AND start_date BETWEEN $2 AND $3
		ORDER BY start_date ASC
	`, string(kind), start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]health.Sample, 0)
	for rows.Next() {
		var (
			s       health.Sample
			rawKind string
		)
		if err := rows.Scan(&s.ID, &rawKind, &s.Value, &s.StartDate, &s.EndDate); err != nil {
			return nil, err
		}
		s.Kind = health.SignalKind(rawKind)
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ health.Repository = (*PostgresRepository)(nil)
