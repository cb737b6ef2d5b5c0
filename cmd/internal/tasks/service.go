package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tasktrack/cmd/identity/ids"
)

// Service applies validation and owner scoping on top of a Repository.
type Service struct {
	repo Repository
	pub  Publisher
	now  func() time.Time
	log  *slog.Logger
}

// Option configures Service.
type Option func(*Service) error

// WithPublisher sets the event sink for committed mutations.
func WithPublisher(p Publisher) Option {
	return func(s *Service) error {
		if p == nil {
			return errors.New("tasks: nil publisher")
		}
		s.pub = p
		return nil
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return errors.New("tasks: nil clock")
		}
		s.now = now
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("tasks: nil repository")
	}
	s := &Service{
		repo: repo,
		pub:  nopPublisher{},
		now:  time.Now,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// List returns the owner's tasks, newest first.
func (s *Service) List(ctx context.Context, owner string, f Filter) ([]Task, error) {
	const op = "tasks.List"
	if owner == "" {
		return nil, errors.New(op + ": empty owner")
	}

	f.Query = strings.TrimSpace(f.Query)
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid(op, msgInvalidStatus)
	}

	out, err := s.repo.List(ctx, owner, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Task{}
	}
	return out, nil
}

// Get returns one task. Missing and foreign tasks are both NotFound.
func (s *Service) Get(ctx context.Context, owner, id string) (Task, error) {
	const op = "tasks.Get"
	if owner == "" {
		return Task{}, errors.New(op + ": empty owner")
	}
	if !ids.Valid(id) {
		return Task{}, NotFoundError{Op: op, ID: id}
	}
	return s.repo.Get(ctx, owner, id)
}

// Create validates in and stores a new task owned by owner.
func (s *Service) Create(ctx context.Context, owner string, in CreateInput) (Task, error) {
	const op = "tasks.Create"
	if owner == "" {
		return Task{}, errors.New(op + ": empty owner")
	}

	title, err := normalizeTitle(op, in.Title)
	if err != nil {
		return Task{}, err
	}
	if err := checkDescription(op, in.Description); err != nil {
		return Task{}, err
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return Task{}, invalid(op, msgInvalidStatus)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	id, err := ids.NewULID(now)
	if err != nil {
		return Task{}, fmt.Errorf("%s: id: %w", op, err)
	}

	t, err := s.repo.Insert(ctx, Task{
		ID:          id,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Task{}, err
	}

	s.pub.Publish(ctx, Event{Type: EventCreated, Owner: owner, TaskID: t.ID, Task: t})
	return t, nil
}

// Update applies p to the owner's task. An empty patch only refreshes UpdatedAt.
func (s *Service) Update(ctx context.Context, owner, id string, p Patch) (Task, error) {
	const op = "tasks.Update"
	if owner == "" {
		return Task{}, errors.New(op + ": empty owner")
	}

	ch := Changes{Description: p.Description, Status: p.Status}
	if p.Title != nil {
		title, err := normalizeTitle(op, *p.Title)
		if err != nil {
			return Task{}, err
		}
		ch.Title = &title
	}
	if p.Description != nil {
		if err := checkDescription(op, *p.Description); err != nil {
			return Task{}, err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return Task{}, invalid(op, msgInvalidStatus)
	}

	if !ids.Valid(id) {
		return Task{}, NotFoundError{Op: op, ID: id}
	}

	ch.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	t, err := s.repo.Update(ctx, owner, id, ch)
	if err != nil {
		return Task{}, err
	}

	s.pub.Publish(ctx, Event{Type: EventUpdated, Owner: owner, TaskID: t.ID, Task: t})
	return t, nil
}

// Delete removes the owner's task.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	const op = "tasks.Delete"
	if owner == "" {
		return errors.New(op + ": empty owner")
	}
	if !ids.Valid(id) {
		return NotFoundError{Op: op, ID: id}
	}
	if err := s.repo.Delete(ctx, owner, id); err != nil {
		return err
	}

	s.pub.Publish(ctx, Event{Type: EventDeleted, Owner: owner, TaskID: id})
	return nil
}
