package board

import (
	"taskboard/internal/service"
)

// State is a snapshot of the board.
type State struct {
	Tasks      []service.Task
	Filter     service.Filter
	Page       int // 0-based
	TotalPages int
	Loading    bool

	// Loaded is false until the first fetch completes.
	Loaded bool

	// Unread is the number of notifications in the inbox.
	Unread int

	rev uint64
}

// Severity classifies a toast.
type Severity int

const (
	Info Severity = iota
	Success
	Error
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Toast keys.
const (
	ToastLoadError   = "load_error"
	ToastCreated     = "created"
	ToastUpdated     = "updated"
	ToastSaveError   = "save_error"
	ToastDeleted     = "deleted"
	ToastDeleteError = "delete_error"
	ToastNewTask     = "new_task"
)

// Toast is a short-lived status message.
type Toast struct {
	Key      string
	Severity Severity
	Message  string
}

// View displays board state. Calls are serialized; a View never sees two
// calls at once. Snapshots arrive in the order they were taken.
type View interface {
	Render(State)
	Toast(Toast)
}
