package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"taskboard/internal/service"
)

// userDirectory resolves assignee references, fetching the user list at
// most once.
type userDirectory struct {
	svc     service.Service
	users   []service.User
	fetched bool
}

func newUserDirectory(svc service.Service) *userDirectory {
	return &userDirectory{svc: svc}
}

// Resolve returns the user id for ref.
//
// Resolution rules:
// 1. All digits, optionally prefixed with '#' → that id, no lookup
// 2. Otherwise an email or a name, compared case-insensitively after trimming
// 3. No match → service.ErrNotFound; several matches → service.ErrAmbiguous
func (d *userDirectory) Resolve(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("assignee required")
	}
	if raw := strings.TrimPrefix(ref, "#"); isAllDigits(raw) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			return 0, fmt.Errorf("invalid user id: %s", ref)
		}
		return id, nil
	}

	if !d.fetched {
		users, err := d.svc.ListUsers(ctx)
		if err != nil {
			return 0, fmt.Errorf("list users: %w", err)
		}
		d.users = users
		d.fetched = true
	}

	want := strings.ToLower(ref)
	var matches []service.User
	for _, u := range d.users {
		if strings.ToLower(strings.TrimSpace(u.Email)) == want {
			// Emails are unique; an email match wins outright.
			return u.ID, nil
		}
		if strings.ToLower(strings.TrimSpace(u.Name)) == want {
			matches = append(matches, u)
		}
	}

	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("user %s: %w", ref, service.ErrNotFound)
	case 1:
		return matches[0].ID, nil
	default:
		return 0, fmt.Errorf("user %s matches %d users: %w", ref, len(matches), service.ErrAmbiguous)
	}
}
