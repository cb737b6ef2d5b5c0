package tasks

import "context"

// EventType names a task mutation.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes a committed mutation. Task is the zero value for deletions.
type Event struct {
	Type   EventType
	Owner  string
	TaskID string
	Task   Task
}

// Publisher receives events after a mutation commits. Publish must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}
