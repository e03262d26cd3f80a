package routing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vroomgo/internal/obs"
)

// SQLCache stores matrices in a Postgres table.
type SQLCache struct {
	DB *sql.DB
}

// OpenSQLCache opens a pgx-backed database and ensures the cache table exists.
func OpenSQLCache(ctx context.Context, dsn string) (*SQLCache, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	c := &SQLCache{DB: db}
	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLCache) Migrate(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS matrix_cache (
		key        TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("matrix cache migrate: %w", err)
	}
	return nil
}

func (c *SQLCache) Get(ctx context.Context, key string) (_ Matrices, _ bool, err error) {
	defer obs.Time(ctx, "matrix_cache.sql.get")(&err)
	if c.DB == nil {
		return Matrices{}, false, errors.New("matrix cache: db is nil")
	}

	var payload []byte
	err = c.DB.QueryRowContext(ctx, `SELECT payload FROM matrix_cache WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Matrices{}, false, nil
	}
	if err != nil {
		return Matrices{}, false, fmt.Errorf("matrix cache get: %w", err)
	}
	var m Matrices
	if err := json.Unmarshal(payload, &m); err != nil {
		return Matrices{}, false, fmt.Errorf("matrix cache decode: %w", err)
	}
	return m, true, nil
}

func (c *SQLCache) Put(ctx context.Context, key string, m Matrices) (err error) {
	defer obs.Time(ctx, "matrix_cache.sql.put")(&err)
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("matrix cache encode: %w", err)
	}
	_, err = c.DB.ExecContext(ctx, `
	INSERT INTO matrix_cache (key, payload) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, created_at = now()`, key, payload)
	if err != nil {
		return fmt.Errorf("matrix cache put: %w", err)
	}
	return nil
}

func (c *SQLCache) Close() error { return c.DB.Close() }
