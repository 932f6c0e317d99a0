// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
)

// Errors returned by Service implementations. Callers classify with errors.Is.
var (
	// ErrNotFound is returned when a task or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous is returned when a reference matches more than one record.
	ErrAmbiguous = errors.New("ambiguous")

	// ErrUnauthorized is returned when the backend rejects the credentials (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the session lacks the required role (403).
	ErrForbidden = errors.New("forbidden")
)

// Service defines the interface for task backend operations.
// All REST calls go through this interface.
// Commands never build HTTP requests directly.
type Service interface {
	// Login exchanges credentials for a token and profile.
	Login(ctx context.Context, creds Credentials) (AuthResult, error)

	// Register creates a new account.
	Register(ctx context.Context, reg Registration) error

	// ListTasks returns one page of tasks matching the query.
	// Results are in API order (no client-side sorting).
	ListTasks(ctx context.Context, q TaskQuery) (TaskPage, error)

	// GetTask returns a single task by ID.
	GetTask(ctx context.Context, id int64) (Task, error)

	// CreateTask creates a new task.
	CreateTask(ctx context.Context, in TaskInput) error

	// UpdateTask replaces the editable fields of a task.
	UpdateTask(ctx context.Context, id int64, in TaskInput) error

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id int64) error

	// ListUsers returns all users. Admin only.
	ListUsers(ctx context.Context) ([]User, error)
}
