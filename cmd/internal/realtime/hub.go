package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tasktrack/cmd/internal/tasks"
	v1 "tasktrack/shared/contracts/taskfeed/v1"
)

// Hub routes envelopes to the sessions of a single owner.
// It satisfies tasks.Publisher.
type Hub struct {
	log *slog.Logger
	now func() time.Time

	mu    sync.RWMutex
	feeds map[string]*feed
}

var _ tasks.Publisher = (*Hub)(nil)

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		now:   time.Now,
		feeds: make(map[string]*feed),
	}
}

// Join subscribes the client to its user's feed.
func (h *Hub) Join(c *Client) {
	if h == nil || c == nil || c.SessionID == "" || c.UserID == "" {
		return
	}

	h.mu.Lock()
	f, ok := h.feeds[c.UserID]
	if !ok {
		f = newFeed(c.UserID)
		h.feeds[c.UserID] = f
	}
	f.join(c)
	h.mu.Unlock()

	h.log.Info("feed.session.join", "user_id", c.UserID, "session_id", c.SessionID)
}

// Leave unsubscribes the client and signals it to stop.
func (h *Hub) Leave(c *Client) {
	if h == nil || c == nil {
		return
	}

	var removed *Client

	h.mu.Lock()
	if f, ok := h.feeds[c.UserID]; ok {
		var remaining int
		removed, remaining = f.leave(c.SessionID)
		if remaining == 0 {
			delete(h.feeds, c.UserID)
		}
	}
	h.mu.Unlock()

	// Close after removal so no broadcaster still holds the client.
	c.Close()

	if removed != nil {
		h.log.Info("feed.session.leave", "user_id", c.UserID, "session_id", c.SessionID)
	}
}

// Broadcast delivers env to every session of owner without blocking.
// It returns the number of sessions that accepted the envelope.
func (h *Hub) Broadcast(owner string, env v1.Envelope) int {
	if h == nil || owner == "" {
		return 0
	}

	h.mu.RLock()
	f := h.feeds[owner]
	h.mu.RUnlock()
	if f == nil {
		return 0
	}

	delivered, dropped := f.broadcast(env)
	if dropped > 0 {
		h.log.Warn("feed.broadcast.drop", "user_id", owner, "type", env.Type, "dropped", dropped)
	}
	return delivered
}

// Sessions returns the number of live sessions across all owners.
func (h *Hub) Sessions() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, f := range h.feeds {
		n += f.size()
	}
	return n
}

// Publish converts a committed task mutation into an envelope for the owner's sessions.
func (h *Hub) Publish(_ context.Context, ev tasks.Event) {
	if h == nil {
		return
	}
	env, ok := taskEnvelope(ev, h.now().UTC())
	if !ok {
		h.log.Warn("feed.publish.skip", "event", string(ev.Type), "task_id", ev.TaskID)
		return
	}
	h.Broadcast(ev.Owner, env)
}

func taskEnvelope(ev tasks.Event, now time.Time) (v1.Envelope, bool) {
	var (
		typ     string
		payload any
	)

	switch ev.Type {
	case tasks.EventCreated, tasks.EventUpdated:
		typ = v1.TypeTaskCreated
		if ev.Type == tasks.EventUpdated {
			typ = v1.TypeTaskUpdated
		}
		payload = toTaskPayload(ev.Task)
	case tasks.EventDeleted:
		typ = v1.TypeTaskDeleted
		payload = v1.TaskDeletedPayload{ID: ev.TaskID}
	default:
		return v1.Envelope{}, false
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return v1.Envelope{}, false
	}
	return newEnvelope(typ, raw, now), true
}

func toTaskPayload(t tasks.Task) v1.TaskPayload {
	return v1.TaskPayload{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		User:        t.Owner,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
