package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"taskboard/internal/commands"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/testutil"
)

// newConfig returns a config over a temp dir with an in-memory session.
// A non-empty role signs the session in with that role.
func newConfig(t *testing.T, role session.Role, quiet bool) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Dir:      t.TempDir(),
		Quiet:    quiet,
		Settings: config.DefaultSettings(),
	}
	cfg.SetSession(session.NewStore(session.NewMemoryStorage(nil)))
	if role != "" {
		if err := cfg.Session().Set(session.Session{Token: "T", Role: role, Name: "Ann", Email: "ann@example.com"}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	return cfg
}

var errBoom = errors.New("boom")

// newFlagSet parses argv with the command's flags.
func newFlagSet(t *testing.T, cmd commands.Command, argv []string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(argv); err != nil {
		t.Fatalf("parse %v: %v", argv, err)
	}
	return fs
}

// runCommand parses argv with the command's flags and runs it.
func runCommand(t *testing.T, cmd commands.Command, cfg *config.Config, svc service.Service, argv ...string) (stdout, stderr string, code int) {
	t.Helper()

	fs := newFlagSet(t, cmd, argv)
	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), cfg, svc, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, newConfig(t, "", false), nil)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskboard 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, newConfig(t, "", false), nil)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	for _, want := range []string{"Usage:", "board", "login", "Common flags:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestHelpCommand_ForCommand(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.HelpCmd{}, newConfig(t, "", false), nil, "list")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "taskboard list [--title <text>]") {
		t.Errorf("unexpected help: %q", stdout)
	}

	_, stderr, code := runCommand(t, &commands.HelpCmd{}, newConfig(t, "", false), nil, "nope")
	if code != exitcode.UserError || stderr != "error: unknown command: nope\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

// Tests for list command
func TestListCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(1, "Write report")
	svc.PutTask(service.Task{ID: 2, Title: "Ship", Status: service.StatusInProgress, AssignedUserName: "Bob"})

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, newConfig(t, session.RoleUser, false), svc)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	want := "    1  PENDING      Write report\n" +
		"    2  IN_PROGRESS  Ship  @Bob\n" +
		"page 1/1\n"
	if stdout != want {
		t.Errorf("got:\n%q\nwant:\n%q", stdout, want)
	}

	queries := svc.Queries()
	if len(queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(queries))
	}
	if q := queries[0]; q.Page != 0 || q.Size != 12 || !q.Filter.IsZero() {
		t.Errorf("unexpected query %+v", q)
	}
}

func TestListCommand_FiltersAndPage(t *testing.T) {
	svc := testutil.NewFakeService()

	_, _, code := runCommand(t, &commands.ListCmd{}, newConfig(t, session.RoleUser, false), svc,
		"--title", " report ", "--status", "in-progress", "--page", "3")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}

	q := svc.Queries()[0]
	want := service.TaskQuery{Filter: service.Filter{Title: "report", Status: service.StatusInProgress}, Page: 2, Size: 12}
	if q != want {
		t.Errorf("query = %+v, want %+v", q, want)
	}
}

func TestListCommand_Empty(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ListCmd{}, newConfig(t, session.RoleUser, false), testutil.NewFakeService())
	if code != exitcode.Success || stdout != "no tasks found\n" {
		t.Errorf("got code %d stdout %q", code, stdout)
	}

	stdout, _, _ = runCommand(t, &commands.ListCmd{}, newConfig(t, session.RoleUser, true), testutil.NewFakeService())
	if stdout != "" {
		t.Errorf("quiet: expected no output, got %q", stdout)
	}
}

func TestListCommand_Errors(t *testing.T) {
	tests := []struct {
		name       string
		argv       []string
		listErr    error
		wantCode   int
		wantStderr string
	}{
		{"bad page", []string{"--page", "0"}, nil, exitcode.UserError, "error: invalid page number: 0\n"},
		{"bad status", []string{"--status", "bogus"}, nil, exitcode.UserError, "error: invalid status: bogus\n"},
		{"extra arg", []string{"inbox"}, nil, exitcode.UserError, "error: unexpected argument: inbox\n"},
		{"backend", nil, errors.New("HTTP 500: boom"), exitcode.BackendError, "error: HTTP 500: boom\n"},
		{"rejected", nil, errors.Join(errors.New("token expired"), service.ErrUnauthorized), exitcode.AuthError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			svc.ListTasksErr = tt.listErr
			_, stderr, code := runCommand(t, &commands.ListCmd{}, newConfig(t, session.RoleUser, false), svc, tt.argv...)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantStderr != "" && stderr != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantStderr)
			}
		})
	}
}

// Tests for show command
func TestShowCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.PutTask(service.Task{ID: 4, Title: "Ship", Description: "soon", Status: service.StatusPending})

	stdout, _, code := runCommand(t, &commands.ShowCmd{}, newConfig(t, session.RoleUser, false), svc, "#4")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.HasPrefix(stdout, "id:          4\ntitle:       Ship\n") {
		t.Errorf("unexpected output %q", stdout)
	}

	_, stderr, code := runCommand(t, &commands.ShowCmd{}, newConfig(t, session.RoleUser, false), svc, "9")
	if code != exitcode.UserError || stderr != "error: task 9: not found\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}

	_, stderr, code = runCommand(t, &commands.ShowCmd{}, newConfig(t, session.RoleUser, false), svc)
	if code != exitcode.UserError || stderr != "error: task id required\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(5, "Bob", "bob@example.com")

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "Write report", "--description", "weekly", "--assignee", "BOB@example.com")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}

	task, ok := svc.Task(1)
	if !ok {
		t.Fatal("task not created")
	}
	if task.Title != "Write report" || task.Description != "weekly" || task.Status != service.StatusPending {
		t.Errorf("unexpected task %+v", task)
	}
	if task.AssignedUserID != 5 || task.AssignedUserName != "Bob" {
		t.Errorf("assignee = %d %q, want 5 Bob", task.AssignedUserID, task.AssignedUserName)
	}
}

func TestAddCommand_PositionalTitleAndNumericAssignee(t *testing.T) {
	svc := testutil.NewFakeService()

	_, _, code := runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleAdmin, true), svc,
		"--assignee", "#7", "--status", "completed", "Write", "report")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	task, _ := svc.Task(1)
	if task.Title != "Write report" || task.AssignedUserID != 7 || task.Status != service.StatusCompleted {
		t.Errorf("unexpected task %+v", task)
	}
	if svc.Calls("ListUsers") != 0 {
		t.Error("numeric assignee should not list users")
	}
}

func TestAddCommand_RequiresAdmin(t *testing.T) {
	svc := testutil.NewFakeService()

	_, stderr, code := runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleUser, false), svc,
		"--title", "x", "--assignee", "1")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: admin role required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.Calls("CreateTask") != 0 {
		t.Error("CreateTask should not be called")
	}
}

func TestAddCommand_Validation(t *testing.T) {
	svc := testutil.NewFakeService()

	_, stderr, code := runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleAdmin, false), svc)
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	want := "error: title: is required\nerror: assignedUserId: is required\n"
	if stderr != want {
		t.Errorf("stderr = %q, want %q", stderr, want)
	}
	if svc.Calls("CreateTask") != 0 {
		t.Error("nothing should be sent on validation failure")
	}
}

func TestAddCommand_AssigneeErrors(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(1, "Bob", "bob1@example.com")
	svc.AddUser(2, "bob ", "bob2@example.com")

	_, stderr, code := runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "x", "--assignee", "Bob")
	if code != exitcode.UserError || !strings.Contains(stderr, "matches 2 users") {
		t.Errorf("ambiguous: code %d stderr %q", code, stderr)
	}

	_, stderr, code = runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "x", "--assignee", "carol")
	if code != exitcode.UserError || stderr != "error: user carol: not found\n" {
		t.Errorf("not found: code %d stderr %q", code, stderr)
	}
}

func TestAddCommand_BackendError(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.CreateTaskErr = errors.New("HTTP 500: boom")

	_, stderr, code := runCommand(t, &commands.AddCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "x", "--assignee", "1")
	if code != exitcode.BackendError || stderr != "error: create task: HTTP 500: boom\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

// Tests for edit command
func TestEditCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(5, "Bob", "bob@example.com")
	svc.PutTask(service.Task{ID: 3, Title: "Old", Description: "keep", Status: service.StatusPending, AssignedUserID: 5})

	_, stderr, code := runCommand(t, &commands.EditCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "New", "--status", "IN_PROGRESS", "3")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	task, _ := svc.Task(3)
	if task.Title != "New" || task.Status != service.StatusInProgress || task.Description != "keep" || task.AssignedUserID != 5 {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestEditCommand_NoChanges(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.PutTask(service.Task{ID: 3, Title: "Same", Status: service.StatusPending, AssignedUserID: 5})

	stdout, _, code := runCommand(t, &commands.EditCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "Same", "3")
	if code != exitcode.Success || stdout != "no changes\n" {
		t.Errorf("got code %d stdout %q", code, stdout)
	}
	if svc.Calls("UpdateTask") != 0 {
		t.Error("UpdateTask should not be called")
	}
}

func TestEditCommand_ClearTitleFailsValidation(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.PutTask(service.Task{ID: 3, Title: "Old", Status: service.StatusPending, AssignedUserID: 5})

	_, stderr, code := runCommand(t, &commands.EditCmd{}, newConfig(t, session.RoleAdmin, false), svc,
		"--title", "  ", "3")
	if code != exitcode.UserError || stderr != "error: title: is required\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

// Tests for done command
func TestDoneCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.PutTask(service.Task{ID: 2, Title: "Ship", Status: service.StatusInProgress, AssignedUserID: 1})

	stdout, _, code := runCommand(t, &commands.DoneCmd{}, newConfig(t, session.RoleAdmin, false), svc, "2")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("got code %d stdout %q", code, stdout)
	}
	task, _ := svc.Task(2)
	if task.Status != service.StatusCompleted || task.Title != "Ship" {
		t.Errorf("unexpected task %+v", task)
	}

	// Completing again sends nothing.
	runCommand(t, &commands.DoneCmd{}, newConfig(t, session.RoleAdmin, false), svc, "2")
	if svc.Calls("UpdateTask") != 1 {
		t.Errorf("UpdateTask calls = %d, want 1", svc.Calls("UpdateTask"))
	}
}

// Tests for rm command
func TestRmCommand_Force(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(3, "Old")

	cmd := &commands.RmCmd{}
	stdout, _, code := runCommand(t, cmd, newConfig(t, session.RoleAdmin, false), svc, "--force", "3")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("got code %d stdout %q", code, stdout)
	}
	if _, ok := svc.Task(3); ok {
		t.Error("task should be deleted")
	}
	if svc.Calls("GetTask") != 0 {
		t.Error("--force should not look the task up")
	}
}

func TestRmCommand_Confirm(t *testing.T) {
	tests := []struct {
		answer   string
		wantCode int
		deleted  bool
	}{
		{"y\n", exitcode.Success, true},
		{"YES\n", exitcode.Success, true},
		{"n\n", exitcode.UserError, false},
		{"", exitcode.UserError, false},
	}
	for _, tt := range tests {
		svc := testutil.NewFakeService()
		svc.AddTask(3, "Old")
		cfg := newConfig(t, session.RoleAdmin, false)
		cfg.Stdin = strings.NewReader(tt.answer)

		_, stderr, code := runCommand(t, &commands.RmCmd{}, cfg, svc, "3")
		if code != tt.wantCode {
			t.Errorf("answer %q: code = %d, want %d", tt.answer, code, tt.wantCode)
		}
		if !strings.HasPrefix(stderr, `delete task #3 "Old"? [y/N] `) {
			t.Errorf("answer %q: missing prompt in %q", tt.answer, stderr)
		}
		if _, ok := svc.Task(3); ok == tt.deleted {
			t.Errorf("answer %q: deleted = %v, want %v", tt.answer, !ok, tt.deleted)
		}
		if !tt.deleted && !strings.HasSuffix(stderr, "error: not confirmed (use --force)\n") {
			t.Errorf("answer %q: stderr = %q", tt.answer, stderr)
		}
	}
}

func TestRmCommand_NotFound(t *testing.T) {
	svc := testutil.NewFakeService()

	_, stderr, code := runCommand(t, &commands.RmCmd{}, newConfig(t, session.RoleAdmin, false), svc, "--force", "8")
	if code != exitcode.UserError || stderr != "error: delete task 8: not found\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

// Tests for users command
func TestUsersCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(1, "Ann", "ann@example.com")
	svc.AddUser(2, "Bob", "bob@example.com")

	stdout, _, code := runCommand(t, &commands.UsersCmd{}, newConfig(t, session.RoleAdmin, false), svc)
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	want := "    1  Ann  <ann@example.com>  ROLE_USER\n" +
		"    2  Bob  <bob@example.com>  ROLE_USER\n"
	if stdout != want {
		t.Errorf("got:\n%q\nwant:\n%q", stdout, want)
	}

	_, _, code = runCommand(t, &commands.UsersCmd{}, newConfig(t, session.RoleUser, false), svc)
	if code != exitcode.AuthError {
		t.Errorf("non-admin: code = %d, want %d", code, exitcode.AuthError)
	}
}
