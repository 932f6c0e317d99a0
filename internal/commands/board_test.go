package commands_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"taskboard/internal/commands"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/live"
	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a board
// session.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// boardRun is a board command running in the background, fed through a
// pipe.
type boardRun struct {
	in   *io.PipeWriter
	out  *syncBuffer
	done chan int
}

func startBoard(t *testing.T, cfg *config.Config, svc service.Service, argv ...string) *boardRun {
	t.Helper()
	pr, pw := io.Pipe()
	cfg.Stdin = pr

	cmd := &commands.BoardCmd{}
	fs := newFlagSet(t, cmd, argv)

	r := &boardRun{in: pw, out: &syncBuffer{}, done: make(chan int, 1)}
	go func() {
		r.done <- cmd.Run(context.Background(), cfg, svc, fs.Args(), r.out, r.out)
	}()
	t.Cleanup(func() { _ = pw.Close() })
	return r
}

func (r *boardRun) send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(r.in, line+"\n"); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (r *boardRun) waitOutput(t *testing.T, want string) {
	t.Helper()
	waitFor(t, "output "+want, func() bool { return strings.Contains(r.out.String(), want) })
}

func (r *boardRun) finish(t *testing.T) int {
	t.Helper()
	_ = r.in.Close()
	select {
	case code := <-r.done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("board did not exit")
		return -1
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestBoardCommand_FilterAndPaging(t *testing.T) {
	svc := testutil.NewFakeService()
	for i := int64(1); i <= 3; i++ {
		svc.AddTask(i, "task "+string(rune('a'+i-1)))
	}
	cfg := newConfig(t, session.RoleUser, false)
	cfg.Settings.PageSize = 2

	r := startBoard(t, cfg, svc, "--no-live")
	r.waitOutput(t, "page 1/2")

	r.send(t, "next")
	r.waitOutput(t, "    3  PENDING      task c")
	r.waitOutput(t, "page 2/2")

	r.send(t, "next")
	r.waitOutput(t, "error: page out of range: 3 of 2")

	r.send(t, `filter title="task b" status=pending`)
	waitFor(t, "filtered query", func() bool {
		q := svc.Queries()
		return q[len(q)-1].Filter == service.Filter{Title: "task b", Status: service.StatusPending}
	})
	r.waitOutput(t, `filter: title="task b" status=PENDING`)

	// Filter changes keep the page.
	if q := svc.Queries(); q[len(q)-1].Page != 1 {
		t.Errorf("page after filter = %d, want 1", q[len(q)-1].Page)
	}

	r.send(t, "bogus")
	r.waitOutput(t, "error: unknown board command: bogus (try: help)")

	r.send(t, "quit")
	if code := <-r.done; code != exitcode.Success {
		t.Errorf("exit code = %d, want %d", code, exitcode.Success)
	}
}

func TestBoardCommand_DeleteConfirm(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(3, "Old")
	svc.AddTask(4, "Keep")
	cfg := newConfig(t, session.RoleAdmin, false)

	r := startBoard(t, cfg, svc, "--no-live")
	r.waitOutput(t, "Old")

	r.send(t, "rm 4")
	r.waitOutput(t, "delete task #4? [y/N]")
	r.send(t, "no")
	r.waitOutput(t, "cancelled")

	r.send(t, "rm 3")
	r.send(t, "y")
	r.waitOutput(t, "success: task deleted")
	waitFor(t, "refetch after delete", func() bool { return svc.Calls("ListTasks") >= 2 })

	if _, ok := svc.Task(3); ok {
		t.Error("task 3 should be deleted")
	}
	if _, ok := svc.Task(4); !ok {
		t.Error("task 4 should be kept")
	}
	if code := r.finish(t); code != exitcode.Success {
		t.Errorf("exit code = %d", code)
	}
}

func TestBoardCommand_MutationsAndErrors(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(5, "Bob", "bob@example.com")
	svc.PutTask(service.Task{ID: 1, Title: "Ship", Status: service.StatusPending, AssignedUserID: 5})
	cfg := newConfig(t, session.RoleAdmin, false)

	r := startBoard(t, cfg, svc, "--no-live")
	r.waitOutput(t, "Ship")

	r.send(t, `add title="Write report" assignee=bob`)
	r.waitOutput(t, "success: task created")
	waitFor(t, "created task", func() bool { _, ok := svc.Task(2); return ok })

	r.send(t, "add title=x")
	r.waitOutput(t, "error: assignedUserId: is required")

	r.send(t, "done 1")
	r.waitOutput(t, "success: task updated")

	r.send(t, "edit 1 status=completed")
	r.waitOutput(t, "no changes")

	svc.DeleteTaskErr = errBoom
	r.send(t, "rm 2")
	r.send(t, "yes")
	r.waitOutput(t, "error: failed to delete task: boom")

	r.finish(t)

	if task, _ := svc.Task(1); task.Status != service.StatusCompleted {
		t.Errorf("task 1 status = %s", task.Status)
	}
}

func TestBoardCommand_RequiresAdminForMutations(t *testing.T) {
	svc := testutil.NewFakeService()
	r := startBoard(t, newConfig(t, session.RoleUser, false), svc, "--no-live")
	r.waitOutput(t, "no tasks found")

	r.send(t, "add title=x assignee=1")
	r.waitOutput(t, "error: admin role required")
	r.finish(t)

	if svc.Calls("CreateTask") != 0 {
		t.Error("CreateTask should not be called")
	}
}

func TestBoardCommand_LiveUpdateRefetches(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	svc := testutil.NewFakeService()
	svc.AddTask(1, "Ship")
	cfg := newConfig(t, session.RoleUser, false)
	cfg.Settings.WSURL = broker.URL
	cfg.Settings.RefreshCoalesce = 10 * time.Millisecond

	r := startBoard(t, cfg, svc)
	r.waitOutput(t, "bus: connected")
	waitFor(t, "initial fetch", func() bool { return svc.Calls("ListTasks") >= 1 })

	body := []byte(`{"id":7,"title":"X","status":"PENDING"}`)
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(r.out.String(), "task update received: #7 X") {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for live update")
		}
		if err := broker.Publish(live.DefaultTopic, body); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	waitFor(t, "refetch after push", func() bool { return svc.Calls("ListTasks") >= 2 })

	r.send(t, "notifications")
	r.waitOutput(t, "#7 X (PENDING)")

	r.send(t, "clear")
	r.waitOutput(t, "notifications cleared")

	if code := r.finish(t); code != exitcode.Success {
		t.Errorf("exit code = %d", code)
	}

	if h := broker.Handshakes(); len(h) == 0 || h[0].Get("Authorization") != "Bearer T" {
		t.Errorf("handshake should carry the session token: %v", h)
	}
}

func TestWatchCommand(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	cfg := newConfig(t, session.RoleUser, true)
	cfg.Settings.WSURL = broker.URL

	cmd := &commands.WatchCmd{}
	fs := newFlagSet(t, cmd, []string{"--count", "1"})

	out := &syncBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- cmd.Run(context.Background(), cfg, nil, fs.Args(), out, io.Discard)
	}()

	body := []byte(`{"id":9,"title":"Deploy","status":"IN_PROGRESS"}`)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for {
		if err := broker.Publish(live.DefaultTopic, body); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case code := <-done:
			if code != exitcode.Success {
				t.Errorf("exit code = %d", code)
			}
			if !strings.Contains(out.String(), "#9 Deploy (IN_PROGRESS)") {
				t.Errorf("unexpected output %q", out.String())
			}
			return
		case <-tick.C:
		case <-timeout:
			t.Fatal("watch did not exit after one notification")
		}
	}
}

func TestWatchCommand_InvalidCount(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.WatchCmd{}, newConfig(t, session.RoleUser, false), nil, "--count", "-1")
	if code != exitcode.UserError || stderr != "error: invalid count: -1\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}
