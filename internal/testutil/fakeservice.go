// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskboard/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	tasks    []service.Task
	users    []service.User
	nextID   int64
	accounts map[string]fakeLogin // email -> login
	queries  []service.TaskQuery
	calls    map[string]int

	// Error injection for testing
	LoginErr      error
	RegisterErr   error
	ListTasksErr  error
	GetTaskErr    error
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error
	ListUsersErr  error

	// ListTasksGate, if set, is received from before ListTasks returns.
	// Tests use it to hold fetches in flight. The call returns ctx.Err() if
	// ctx ends first.
	ListTasksGate chan struct{}
}

type fakeLogin struct {
	password string
	result   service.AuthResult
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		nextID:   1,
		accounts: make(map[string]fakeLogin),
		calls:    make(map[string]int),
	}
}

// AddAccount registers credentials that Login accepts.
func (f *FakeService) AddAccount(email, password string, result service.AuthResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[strings.ToLower(email)] = fakeLogin{password: password, result: result}
}

// AddUser adds an assignable user.
func (f *FakeService) AddUser(id int64, name, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, service.User{ID: id, Name: name, Email: email, Role: RoleUser})
}

// AddTask adds a task with the given id and title, PENDING and unassigned.
func (f *FakeService) AddTask(id int64, title string) {
	f.PutTask(service.Task{ID: id, Title: title, Status: service.StatusPending})
}

// PutTask stores task as given.
func (f *FakeService) PutTask(task service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = service.Timestamp{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	}
	f.tasks = append(f.tasks, task)
	if task.ID >= f.nextID {
		f.nextID = task.ID + 1
	}
}

// Task returns the stored task with id.
func (f *FakeService) Task(id int64) (service.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// Calls returns how many times the named method was called.
func (f *FakeService) Calls(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

// Queries returns every query passed to ListTasks.
func (f *FakeService) Queries() []service.TaskQuery {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.TaskQuery(nil), f.queries...)
}

func (f *FakeService) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, creds service.Credentials) (service.AuthResult, error) {
	f.count("Login")
	if f.LoginErr != nil {
		return service.AuthResult{}, f.LoginErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	acct, ok := f.accounts[strings.ToLower(creds.Email)]
	if !ok || acct.password != creds.Password {
		return service.AuthResult{}, service.ErrUnauthorized
	}
	return acct.result, nil
}

// Register implements service.Service.
func (f *FakeService) Register(ctx context.Context, reg service.Registration) error {
	f.count("Register")
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[strings.ToLower(reg.Email)] = fakeLogin{
		password: reg.Password,
		result:   service.AuthResult{Token: "token-" + reg.Email, Role: RoleUser, Name: reg.Name, Email: reg.Email},
	}
	return nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, q service.TaskQuery) (service.TaskPage, error) {
	f.mu.Lock()
	f.calls["ListTasks"]++
	f.queries = append(f.queries, q)
	gate := f.ListTasksGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return service.TaskPage{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return service.TaskPage{}, err
	}
	if f.ListTasksErr != nil {
		return service.TaskPage{}, f.ListTasksErr
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var matched []service.Task
	for _, t := range f.tasks {
		if q.Title != "" && !containsFold(t.Title, q.Title) {
			continue
		}
		if q.Description != "" && !containsFold(t.Description, q.Description) {
			continue
		}
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		matched = append(matched, t)
	}

	size := q.Size
	if size <= 0 {
		size = 10
	}
	page := service.TaskPage{Content: []service.Task{}, TotalPages: (len(matched) + size - 1) / size}
	start := q.Page * size
	if q.Page < 0 || start >= len(matched) {
		return page, nil
	}
	end := min(start+size, len(matched))
	page.Content = append(page.Content, matched[start:end]...)
	return page, nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, id int64) (service.Task, error) {
	f.count("GetTask")
	if f.GetTaskErr != nil {
		return service.Task{}, f.GetTaskErr
	}
	if t, ok := f.Task(id); ok {
		return t, nil
	}
	return service.Task{}, service.ErrNotFound
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, in service.TaskInput) error {
	f.count("CreateTask")
	if f.CreateTaskErr != nil {
		return f.CreateTaskErr
	}
	f.mu.Lock()
	id := f.nextID
	f.mu.Unlock()

	status := in.Status
	if status == "" {
		status = service.StatusPending
	}
	f.PutTask(service.Task{
		ID:               id,
		Title:            in.Title,
		Description:      in.Description,
		Status:           status,
		AssignedUserID:   in.AssignedUserID,
		AssignedUserName: f.userName(in.AssignedUserID),
	})
	return nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id int64, in service.TaskInput) error {
	f.count("UpdateTask")
	if f.UpdateTaskErr != nil {
		return f.UpdateTaskErr
	}
	name := f.userName(in.AssignedUserID)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			t.Title = in.Title
			t.Description = in.Description
			if in.Status != "" {
				t.Status = in.Status
			}
			t.AssignedUserID = in.AssignedUserID
			t.AssignedUserName = name
			f.tasks[i] = t
			return nil
		}
	}
	return service.ErrNotFound
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id int64) error {
	f.count("DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return service.ErrNotFound
}

// ListUsers implements service.Service.
func (f *FakeService) ListUsers(ctx context.Context) ([]service.User, error) {
	f.count("ListUsers")
	if f.ListUsersErr != nil {
		return nil, f.ListUsersErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.User(nil), f.users...), nil
}

func (f *FakeService) userName(id int64) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, u := range f.users {
		if u.ID == id {
			return u.Name
		}
	}
	return ""
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

var _ service.Service = (*FakeService)(nil)
