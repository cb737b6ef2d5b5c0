package tasks

import "context"

// Repository is the task persistence boundary.
//
// Get, Update and Delete match on id AND owner in a single statement and
// return NotFoundError when nothing matches. List orders by created_at
// descending, then id descending.
type Repository interface {
	Insert(ctx context.Context, t Task) (Task, error)
	List(ctx context.Context, owner string, f Filter) ([]Task, error)
	Get(ctx context.Context, owner, id string) (Task, error)
	Update(ctx context.Context, owner, id string, ch Changes) (Task, error)
	Delete(ctx context.Context, owner, id string) error
}
