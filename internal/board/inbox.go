package board

import (
	"sync"
	"time"

	"taskboard/internal/service"
)

// DefaultInboxLimit caps the number of notifications kept.
const DefaultInboxLimit = 50

// Notification is one pushed task update.
type Notification struct {
	Task       service.Task
	ReceivedAt time.Time
}

// Inbox keeps received notifications, newest first. It is safe for
// concurrent use.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewInbox creates an inbox holding at most limit items (limit <= 0 means
// DefaultInboxLimit).
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &Inbox{limit: limit}
}

// Add prepends n, dropping the oldest item when full.
func (in *Inbox) Add(n Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = append([]Notification{n}, in.items...)
	if len(in.items) > in.limit {
		in.items = in.items[:in.limit]
	}
}

// List returns a copy of the notifications, newest first.
func (in *Inbox) List() []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]Notification(nil), in.items...)
}

// Len returns the number of notifications.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}

// Clear removes all notifications.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = nil
}
