// Package board is the task list view model.
//
// The board holds a disposable copy of one page of tasks. The backend is the
// only source of truth: mounting, changing the filter or page, a successful
// mutation and a live push all trigger a full fetch of the current page.
// Pushes arriving within the coalesce window collapse into one fetch. Each new
// fetch cancels the one before it, and a result that arrives for a superseded
// fetch is discarded.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskboard/internal/forms"
	"taskboard/internal/logging"
	"taskboard/internal/service"
)

const (
	// DefaultPageSize is the number of tasks per page.
	DefaultPageSize = 12

	// DefaultCoalesce is the window in which pushes share one fetch.
	DefaultCoalesce = 250 * time.Millisecond
)

// ErrPageOutOfRange is returned by SetPage for an index outside the known
// page range.
var ErrPageOutOfRange = errors.New("page out of range")

// ErrClosed is returned by operations on a closed board.
var ErrClosed = errors.New("board closed")

// Options configures a Board.
type Options struct {
	PageSize int

	// Coalesce is the push coalesce window. Zero fetches on every push.
	Coalesce time.Duration

	// Filter is the initial filter.
	Filter service.Filter

	// Inbox receives pushed notifications. Nil creates a private inbox.
	Inbox *Inbox

	Logger *logging.Logger

	// Now is the clock for notification timestamps.
	Now func() time.Time
}

// Board is the task view model. It is safe for concurrent use.
type Board struct {
	svc   service.Service
	view  View
	inbox *Inbox
	opts  Options
	log   *logging.Logger

	mu         sync.Mutex
	state      State
	base       context.Context
	baseCancel context.CancelFunc
	gen        uint64
	cancel     context.CancelFunc // in-flight fetch
	timer      *time.Timer        // pending coalesced fetch
	rev        uint64
	closed     bool
	wg         sync.WaitGroup

	viewMu     sync.Mutex
	rendered   uint64
	viewClosed bool
}

// New creates a board. Nothing is fetched until Start.
func New(svc service.Service, view View, opts Options) *Board {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Coalesce < 0 {
		opts.Coalesce = 0
	}
	if opts.Inbox == nil {
		opts.Inbox = NewInbox(0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base, cancel := context.WithCancel(context.Background())
	return &Board{
		svc:        svc,
		view:       view,
		inbox:      opts.Inbox,
		opts:       opts,
		log:        opts.Logger.WithComponent("board"),
		state:      State{Filter: opts.Filter, Tasks: []service.Task{}},
		base:       base,
		baseCancel: cancel,
	}
}

// Start binds the board to ctx and performs the initial fetch. Cancelling
// ctx cancels any fetch in flight.
func (b *Board) Start(ctx context.Context) {
	b.mu.Lock()
	b.baseCancel()
	b.base, b.baseCancel = context.WithCancel(ctx)
	b.mu.Unlock()
	b.reload("mount")
}

// Inbox returns the notification inbox.
func (b *Board) Inbox() *Inbox {
	return b.inbox
}

// State returns a snapshot of the board.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// SetFilter replaces the filter and refetches. The page index is kept.
func (b *Board) SetFilter(f service.Filter) {
	b.mu.Lock()
	b.state.Filter = f
	b.mu.Unlock()
	b.reload("filter")
}

// SetPage moves to the 0-based page and refetches. When the page count is
// known, page must be in [0, TotalPages).
func (b *Board) SetPage(page int) error {
	b.mu.Lock()
	total := b.state.TotalPages
	if page < 0 || (total > 0 && page >= total) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page+1, total)
	}
	b.state.Page = page
	b.mu.Unlock()
	b.reload("page")
	return nil
}

// NextPage moves one page forward.
func (b *Board) NextPage() error {
	return b.SetPage(b.State().Page + 1)
}

// PrevPage moves one page back.
func (b *Board) PrevPage() error {
	return b.SetPage(b.State().Page - 1)
}

// Refresh refetches the current page.
func (b *Board) Refresh() {
	b.reload("refresh")
}

// Notify handles a live push. The payload only signals that something
// changed; it is stored in the inbox and a full fetch is scheduled.
func (b *Board) Notify(task service.Task) {
	if b.isClosed() {
		return
	}

	b.inbox.Add(Notification{Task: task, ReceivedAt: b.opts.Now()})
	b.toast(Toast{
		Key:      ToastNewTask,
		Severity: Info,
		Message:  fmt.Sprintf("task update received: #%d %s", task.ID, task.Title),
	})

	if b.opts.Coalesce == 0 {
		b.reload("push")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.timer != nil {
		return
	}
	b.timer = time.AfterFunc(b.opts.Coalesce, func() {
		b.mu.Lock()
		b.timer = nil
		b.mu.Unlock()
		b.reload("push")
	})
}

// Create creates a task and, on success, refetches.
func (b *Board) Create(ctx context.Context, in service.TaskInput) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := forms.Validate(in); err != nil {
		return err
	}
	if err := b.svc.CreateTask(ctx, in); err != nil {
		b.toast(Toast{Key: ToastSaveError, Severity: Error, Message: "failed to save task: " + err.Error()})
		return fmt.Errorf("create task: %w", err)
	}
	b.toast(Toast{Key: ToastCreated, Severity: Success, Message: "task created"})
	b.reload("create")
	return nil
}

// Update replaces a task's editable fields and, on success, refetches.
func (b *Board) Update(ctx context.Context, id int64, in service.TaskInput) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := forms.Validate(in); err != nil {
		return err
	}
	if err := b.svc.UpdateTask(ctx, id, in); err != nil {
		b.toast(Toast{Key: ToastSaveError, Severity: Error, Message: "failed to save task: " + err.Error()})
		return fmt.Errorf("update task %d: %w", id, err)
	}
	b.toast(Toast{Key: ToastUpdated, Severity: Success, Message: "task updated"})
	b.reload("update")
	return nil
}

// Delete deletes a task and, on success, refetches.
func (b *Board) Delete(ctx context.Context, id int64) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.svc.DeleteTask(ctx, id); err != nil {
		b.toast(Toast{Key: ToastDeleteError, Severity: Error, Message: "failed to delete task: " + err.Error()})
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	b.toast(Toast{Key: ToastDeleted, Severity: Success, Message: "task deleted"})
	b.reload("delete")
	return nil
}

// Close cancels pending and in-flight fetches and waits for them to finish.
// No view call starts after Close returns.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.baseCancel()
	b.mu.Unlock()

	b.wg.Wait()

	b.viewMu.Lock()
	b.viewClosed = true
	b.viewMu.Unlock()
}

func (b *Board) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// reload starts a fetch of the current page, superseding any fetch in flight.
func (b *Board) reload(reason string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.log.Debug("fetch superseded", "generation", b.gen, "reason", reason)
	}
	b.gen++
	gen := b.gen
	ctx, cancel := context.WithCancel(b.base)
	b.cancel = cancel
	q := service.TaskQuery{Filter: b.state.Filter, Page: b.state.Page, Size: b.opts.PageSize}
	b.state.Loading = true
	snap := b.snapshotLocked()
	b.wg.Add(1)
	b.mu.Unlock()

	b.log.Debug("fetch", "generation", gen, "reason", reason, "page", q.Page)
	b.render(snap)
	go b.fetch(ctx, cancel, gen, q)
}

func (b *Board) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, q service.TaskQuery) {
	defer b.wg.Done()
	defer cancel()

	page, err := b.svc.ListTasks(ctx, q)

	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		b.log.Debug("discarding superseded result", "generation", gen)
		return
	}
	b.cancel = nil
	b.state.Loading = false
	if err == nil {
		b.state.Tasks = page.Content
		if b.state.Tasks == nil {
			b.state.Tasks = []service.Task{}
		}
		b.state.TotalPages = page.TotalPages
		b.state.Loaded = true
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if err != nil {
		b.log.Warn("fetch failed", "generation", gen, "error", err.Error())
		b.toast(Toast{Key: ToastLoadError, Severity: Error, Message: "failed to load tasks: " + err.Error()})
	}
	b.render(snap)
}

// snapshotLocked copies the state and stamps it with a revision. b.mu must
// be held.
func (b *Board) snapshotLocked() State {
	b.rev++
	s := b.state
	s.rev = b.rev
	s.Tasks = append([]service.Task(nil), b.state.Tasks...)
	s.Unread = b.inbox.Len()
	return s
}

// render delivers snap unless a newer snapshot was already rendered.
func (b *Board) render(snap State) {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	if b.viewClosed || snap.rev < b.rendered {
		return
	}
	b.rendered = snap.rev
	b.view.Render(snap)
}

func (b *Board) toast(t Toast) {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	if b.viewClosed {
		return
	}
	b.view.Toast(t)
}
