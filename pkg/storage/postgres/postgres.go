// Package postgres is a storage.Driver backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercomputeco/quill/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS stories (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories(created_at DESC);
`

// Driver stores stories in PostgreSQL.
type Driver struct {
	pool *pgxpool.Pool
}

// NewDriver connects to dsn and ensures the stories table exists.
func NewDriver(ctx context.Context, dsn string) (*Driver, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Driver{pool: pool}, nil
}

func (d *Driver) Insert(ctx context.Context, story *storage.Story) error {
	if err := story.Validate(); err != nil {
		return err
	}

	_, err := d.pool.Exec(ctx,
		`INSERT INTO stories (id, title, content, prompt, user_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		story.ID, story.Title, story.Content, story.Prompt, story.UserID, story.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, id string) (*storage.Story, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT id, title, content, prompt, user_id, created_at FROM stories WHERE id = $1`, id)

	var story storage.Story
	err := row.Scan(&story.ID, &story.Title, &story.Content, &story.Prompt, &story.UserID, &story.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	story.CreatedAt = story.CreatedAt.UTC()
	return &story, nil
}

func (d *Driver) List(ctx context.Context, limit int) ([]*storage.Story, error) {
	query := `SELECT id, title, content, prompt, user_id, created_at FROM stories ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	stories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Story, error) {
		var s storage.Story
		if err := row.Scan(&s.ID, &s.Title, &s.Content, &s.Prompt, &s.UserID, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		return &s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}
