package healthrepo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yanqian/biofeedback/internal/domain/health"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS health_samples (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	value      REAL NOT NULL,
	start_ms   INTEGER NOT NULL,
	end_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_health_samples_kind_start ON health_samples(kind, start_ms);
`

// SQLiteRepository stores samples in a local SQLite file. Dates are kept as
// unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling wal: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Insert(ctx context.Context, samples ...health.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO health_samples (id, kind, value, start_ms, end_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, s.ID, string(s.Kind), s.Value, s.StartDate.UnixMilli(), s.EndDate.UnixMilli()); err != nil {
			return fmt.Errorf("insert sample %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) List(ctx context.Context, kind health.SignalKind, start, end time.Time) ([]health.Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, value, start_ms, end_ms
		FROM health_samples
		WHERE kind = ? AND start_ms BETWEEN ? AND ?
		ORDER BY start_ms ASC
	`, string(kind), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	out := make([]health.Sample, 0)
	for rows.Next() {
		var (
			s              health.Sample
			rawKind        string
			startMs, endMs int64
		)
		if err := rows.Scan(&s.ID, &rawKind, &s.Value, &startMs, &endMs); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Kind = health.SignalKind(rawKind)
		s.StartDate = time.UnixMilli(startMs).UTC()
		s.EndDate = time.UnixMilli(endMs).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ health.Repository = (*SQLiteRepository)(nil)
