// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses returns all task statuses in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// ParseStatus parses a status name case-insensitively.
// Dashes and spaces are accepted in place of underscores ("in-progress").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, st := range Statuses() {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", s)
}

// Task represents a single task item as the backend returns it.
type Task struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Status           Status    `json:"status"`
	CreatedAt        Timestamp `json:"createdAt"`
	AssignedUserID   int64     `json:"assignedUserId,omitempty"`
	AssignedUserName string    `json:"assignedUserName,omitempty"`
}

// Input returns the editable fields of the task.
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		AssignedUserID: t.AssignedUserID,
	}
}

// TaskInput is the request body for creating or updating a task.
type TaskInput struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	Status         Status `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	AssignedUserID int64  `json:"assignedUserId" validate:"required"`
}

// Filter narrows the task collection. Empty fields do not filter.
type Filter struct {
	Title       string
	Description string
	Status      Status
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Title == "" && f.Description == "" && f.Status == ""
}

// TaskQuery is a filter plus a 0-based page window.
type TaskQuery struct {
	Filter
	Page int
	Size int
}

// TaskPage is one page of the task collection.
type TaskPage struct {
	Content    []Task `json:"content"`
	TotalPages int    `json:"totalPages"`
}

// User is an account that tasks can be assigned to.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up request body.
type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is the login response body.
type AuthResult struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Timestamp is a creation time that tolerates the shapes backends emit.
// Zone-less date-times are read as UTC. Jackson date arrays
// ([y,m,d,h,min,s,nanos]) and epoch milliseconds are accepted. Any other
// value leaves the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	ts.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				ts.Time = t
				return nil
			}
		}
	case '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 3 {
			return nil
		}
		parts = append(parts, make([]int, 7-min(len(parts), 7))...)
		ts.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
	default:
		var ms int64
		if err := json.Unmarshal(data, &ms); err == nil {
			ts.Time = time.UnixMilli(ms).UTC()
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339))
}
