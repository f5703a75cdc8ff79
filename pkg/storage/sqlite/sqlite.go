// Package sqlite is a storage.Driver backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/quill/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS stories (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories(created_at DESC);
`

// Driver stores stories in SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (creating if needed) the database at path.
// Use ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) Insert(ctx context.Context, story *storage.Story) error {
	if err := story.Validate(); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO stories (id, title, content, prompt, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		story.ID, story.Title, story.Content, story.Prompt, story.UserID, story.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, id string) (*storage.Story, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, title, content, prompt, user_id, created_at FROM stories WHERE id = ?`, id)

	story, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return story, nil
}

func (d *Driver) List(ctx context.Context, limit int) ([]*storage.Story, error) {
	query := `SELECT id, title, content, prompt, user_id, created_at FROM stories ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	stories := []*storage.Story{}
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStory(s scanner) (*storage.Story, error) {
	var (
		story     storage.Story
		createdAt int64
	)
	if err := s.Scan(&story.ID, &story.Title, &story.Content, &story.Prompt, &story.UserID, &createdAt); err != nil {
		return nil, err
	}
	story.CreatedAt = time.Unix(0, createdAt).UTC()
	return &story, nil
}
