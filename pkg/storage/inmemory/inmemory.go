// Package inmemory is a map backed storage.Driver for tests and local runs.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/quill/pkg/storage"
)

// Driver keeps stories in memory.
type Driver struct {
	mu      sync.RWMutex
	stories map[string]*storage.Story
}

func NewDriver() *Driver {
	return &Driver{stories: make(map[string]*storage.Story)}
}

func (d *Driver) Insert(ctx context.Context, story *storage.Story) error {
	if err := story.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.stories[story.ID]; ok {
		return fmt.Errorf("story %s already exists", story.ID)
	}
	stored := *story
	d.stories[story.ID] = &stored
	return nil
}

func (d *Driver) Get(ctx context.Context, id string) (*storage.Story, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	story, ok := d.stories[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}
	out := *story
	return &out, nil
}

func (d *Driver) List(ctx context.Context, limit int) ([]*storage.Story, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stories := make([]*storage.Story, 0, len(d.stories))
	for _, s := range d.stories {
		out := *s
		stories = append(stories, &out)
	}
	sort.Slice(stories, func(i, j int) bool {
		return stories[i].CreatedAt.After(stories[j].CreatedAt)
	})

	if limit > 0 && len(stories) > limit {
		stories = stories[:limit]
	}
	return stories, nil
}

func (d *Driver) Close() error {
	return nil
}
