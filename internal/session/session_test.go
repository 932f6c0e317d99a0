package session

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStore_MalformedBlobIsNoSession(t *testing.T) {
	blobs := []string{
		`not json`,
		`{"token":`,
		`[1,2,3]`,
		`"just a string"`,
		`{"token": 42}`,
		`null`,
		`{}`,
	}

	for _, blob := range blobs {
		t.Run(blob, func(t *testing.T) {
			store := NewStore(NewMemoryStorage([]byte(blob)))
			if got := store.Get(); got != nil {
				t.Errorf("Get() = %+v, want nil", got)
			}
			if store.IsAuthenticated() {
				t.Error("IsAuthenticated() = true for malformed blob")
			}
			if store.IsAdmin() {
				t.Error("IsAdmin() = true for malformed blob")
			}
			if store.Role() != "" {
				t.Errorf("Role() = %q, want empty", store.Role())
			}
		})
	}
}

func TestStore_NoSession(t *testing.T) {
	store := NewStore(NewMemoryStorage(nil))

	if store.Get() != nil {
		t.Error("expected nil session")
	}
	if store.IsAuthenticated() {
		t.Error("expected not authenticated")
	}
	if _, err := store.Token(); err != ErrNoSession {
		t.Errorf("Token() error = %v, want ErrNoSession", err)
	}
}

func TestStore_EmptyTokenIsNotAuthenticated(t *testing.T) {
	store := NewStore(NewMemoryStorage([]byte(`{"token":"","role":"ROLE_ADMIN"}`)))

	if store.Get() == nil {
		t.Fatal("expected parsed session")
	}
	if store.IsAuthenticated() {
		t.Error("empty token should not be authenticated")
	}
	if _, err := store.Token(); err != ErrNoSession {
		t.Errorf("Token() error = %v, want ErrNoSession", err)
	}
}

func TestStore_IsAdmin(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleUser, false},
		{"", false},
		{"ADMIN", false},
		{"role_admin", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			store := NewStore(NewMemoryStorage(nil))
			if err := store.Set(Session{Token: "T", Role: tt.role}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if got := store.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_SetGetClear(t *testing.T) {
	store := NewStore(NewMemoryStorage(nil))
	want := Session{Token: "T", Role: RoleAdmin, Name: "A", Email: "a@b.com"}

	if err := store.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got := store.Get()
	if got == nil || *got != want {
		t.Fatalf("Get() = %+v, want %+v", got, want)
	}
	if !store.IsAuthenticated() {
		t.Error("expected authenticated")
	}
	if store.Role() != RoleAdmin {
		t.Errorf("Role() = %q", store.Role())
	}

	tok, err := store.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "T" || tok.Type() != "Bearer" {
		t.Errorf("unexpected token: %+v", tok)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Get() != nil {
		t.Error("expected nil session after Clear")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear should succeed, got %v", err)
	}
}

func TestStore_GetIsIdempotent(t *testing.T) {
	store := NewStore(NewMemoryStorage([]byte(`{"token":"T","role":"ROLE_USER","name":"U","email":"u@x.io"}`)))

	first := store.Get()
	second := store.Get()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Get() not idempotent: %+v vs %+v", first, second)
	}

	empty := NewStore(NewMemoryStorage([]byte(`garbage`)))
	if !reflect.DeepEqual(empty.Get(), empty.Get()) {
		t.Error("Get() not idempotent for malformed blob")
	}
}

func TestFileStorage_RoundTripAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewStore(NewFileStorage(path))

	if store.Exists() {
		t.Error("expected no session file yet")
	}
	if err := store.Set(Session{Token: "T", Name: "A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}

	// A fresh store over the same file sees the record.
	other := NewStore(NewFileStorage(path))
	if got := other.Get(); got == nil || got.Token != "T" {
		t.Errorf("Get() from second store = %+v", got)
	}

	if err := other.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file should have been deleted")
	}
}

func TestFileStorage_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewStore(NewFileStorage(path))
	if store.Get() != nil {
		t.Error("expected nil for malformed file")
	}
	if !store.Exists() {
		t.Error("Exists() should report the malformed record")
	}
}
