package realtime

import (
	"sync"

	v1 "tasktrack/shared/contracts/taskfeed/v1"
)

// feed is the set of live sessions for one owner.
//
// join/leave are safe under concurrent broadcast, and broadcast never blocks.
type feed struct {
	owner string

	mu      sync.RWMutex
	members map[string]*Client
}

func newFeed(owner string) *feed {
	return &feed{owner: owner, members: make(map[string]*Client)}
}

func (f *feed) join(c *Client) {
	f.mu.Lock()
	f.members[c.SessionID] = c
	f.mu.Unlock()
}

// leave removes the session and reports how many remain.
func (f *feed) leave(sessionID string) (removed *Client, remaining int) {
	f.mu.Lock()
	removed = f.members[sessionID]
	delete(f.members, sessionID)
	remaining = len(f.members)
	f.mu.Unlock()
	return removed, remaining
}

func (f *feed) size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.members)
}

// broadcast returns (delivered, dropped).
func (f *feed) broadcast(env v1.Envelope) (delivered, dropped int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, m := range f.members {
		if m.offer(env) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}
