package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vroomgo/internal/solution"
)

const schema = `CREATE TABLE IF NOT EXISTS solutions (
	seq         BIGSERIAL UNIQUE,
	id          UUID PRIMARY KEY,
	code        INT NOT NULL,
	cost        BIGINT NOT NULL,
	routes      INT NOT NULL,
	unassigned  INT NOT NULL,
	body        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the solutions table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) SaveSolution(ctx context.Context, sol *solution.Solution) (string, error) {
	body, err := json.Marshal(sol)
	if err != nil {
		return "", fmt.Errorf("store: encode solution: %w", err)
	}
	id := uuid.New()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO solutions (id, code, cost, routes, unassigned, body) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sol.Code, sol.Summary.Cost, len(sol.Routes), len(sol.Unassigned), body)
	if err != nil {
		return "", fmt.Errorf("store: insert solution: %w", err)
	}
	return id.String(), nil
}

func (p *Postgres) GetSolution(ctx context.Context, id string) (*solution.Solution, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var body []byte
	err = p.db.QueryRowContext(ctx, `SELECT body FROM solutions WHERE id=$1`, uid).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get solution: %w", err)
	}
	var sol solution.Solution
	if err := json.Unmarshal(body, &sol); err != nil {
		return nil, fmt.Errorf("store: decode solution %s: %w", id, err)
	}
	return &sol, nil
}

func (p *Postgres) ListSolutions(ctx context.Context, cursor string, limit int) ([]Entry, string, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	var (
		rows *sql.Rows
		err  error
	)
	const cols = `SELECT id::text, code, cost, routes, unassigned, created_at FROM solutions`
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, cols+` WHERE seq > (SELECT seq FROM solutions WHERE id::text=$1) ORDER BY seq LIMIT $2`, cursor, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, cols+` ORDER BY seq LIMIT $1`, limit+1)
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: list solutions: %w", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Code, &e.Cost, &e.Routes, &e.Unassigned, &e.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}
