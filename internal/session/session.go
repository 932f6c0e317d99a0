// Package session persists the signed-in user's credential record.
//
// A Store holds at most one Session. It reads the backing Storage on every
// access, so a login or logout from another process is seen by the next
// call. Reads fail soft: a missing or malformed record is "no session".
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// Role is the authority the backend grants a user.
type Role string

const (
	RoleAdmin Role = "ROLE_ADMIN"
	RoleUser  Role = "ROLE_USER"
)

// Session is the persisted credential record.
type Session struct {
	Token string `json:"token"`
	Role  Role   `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ErrNoSession is returned by Token when nobody is signed in.
var ErrNoSession = errors.New("not logged in")

// Store is the explicit session context shared by the API client, the live
// subscriber and commands. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	storage Storage
}

// NewStore creates a store over the given storage.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Get returns the current session, or nil if none is stored or the stored
// record is null, empty or cannot be parsed.
func (s *Store) Get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() *Session {
	data, err := s.storage.Load()
	if err != nil || len(data) == 0 {
		return nil
	}
	var sess *Session
	if err := json.Unmarshal(data, &sess); err != nil || sess == nil || *sess == (Session{}) {
		return nil
	}
	return sess
}

// Set persists sess, replacing any existing session.
func (s *Store) Set(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Save(data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear deletes the persisted session. Clearing an absent session is not
// an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Remove(); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Exists reports whether a record is stored, parseable or not.
func (s *Store) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.storage.Load()
	return err == nil && len(data) > 0
}

// IsAuthenticated reports whether a session with a non-empty token exists.
func (s *Store) IsAuthenticated() bool {
	sess := s.Get()
	return sess != nil && sess.Token != ""
}

// Role returns the session role, or "" without a session.
func (s *Store) Role() Role {
	sess := s.Get()
	if sess == nil {
		return ""
	}
	return sess.Role
}

// IsAdmin reports whether the session role is RoleAdmin.
func (s *Store) IsAdmin() bool {
	return s.Role() == RoleAdmin
}

// Token implements oauth2.TokenSource so the session token can be stamped
// onto requests as a bearer credential.
func (s *Store) Token() (*oauth2.Token, error) {
	sess := s.Get()
	if sess == nil || sess.Token == "" {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*Store)(nil)
