// Package storage defines how generated stories are persisted.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidStory is returned when a story is missing required fields.
var ErrInvalidStory = errors.New("invalid story")

// Story is a generated story saved by a user.
type Story struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Prompt    string    `json:"prompt,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStory creates a story with a fresh ID and creation time.
func NewStory(title, content, prompt, userID string) *Story {
	return &Story{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Content:   content,
		Prompt:    prompt,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the fields every driver requires.
func (s *Story) Validate() error {
	if s == nil {
		return errors.New("nil story")
	}
	if s.ID == "" {
		return errors.Join(ErrInvalidStory, errors.New("id is required"))
	}
	if strings.TrimSpace(s.Title) == "" {
		return errors.Join(ErrInvalidStory, errors.New("title is required"))
	}
	if strings.TrimSpace(s.Content) == "" {
		return errors.Join(ErrInvalidStory, errors.New("content is required"))
	}
	return nil
}

// Driver persists stories to a storage backend.
type Driver interface {
	// Insert stores a new story.
	Insert(ctx context.Context, story *Story) error

	// Get retrieves a story by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Story, error)

	// List returns up to limit stories, newest first. A limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*Story, error)

	// Close releases any resources held by the driver.
	Close() error
}

// ErrNotFound is returned when a story doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "story not found"
	}

	return "story not found: " + e.ID
}
