package tasks

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryRepository is an in-process Repository used when no database is configured, and by tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Task
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]Task)}
}

func (r *MemoryRepository) Insert(ctx context.Context, t Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; ok {
		return Task{}, invalid("tasks.Insert", "duplicate task id")
	}
	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) List(ctx context.Context, owner string, f Filter) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(f.Query)

	r.mu.RLock()
	out := make([]Task, 0)
	for _, t := range r.byID {
		if t.Owner != owner {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) {
			continue
		}
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, owner, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok || t.Owner != owner {
		return Task{}, NotFoundError{Op: "tasks.Get", ID: id}
	}
	return t, nil
}

func (r *MemoryRepository) Update(ctx context.Context, owner, id string, ch Changes) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok || t.Owner != owner {
		return Task{}, NotFoundError{Op: "tasks.Update", ID: id}
	}
	if ch.Title != nil {
		t.Title = *ch.Title
	}
	if ch.Description != nil {
		t.Description = *ch.Description
	}
	if ch.Status != nil {
		t.Status = *ch.Status
	}
	t.UpdatedAt = ch.UpdatedAt
	r.byID[id] = t
	return t, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok || t.Owner != owner {
		return NotFoundError{Op: "tasks.Delete", ID: id}
	}
	delete(r.byID, id)
	return nil
}
