package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/forms"
	"taskboard/internal/live"
	"taskboard/internal/output"
	"taskboard/internal/service"
)

func init() {
	Register(&BoardCmd{})
}

// BoardCmd runs the interactive board: a task list kept in sync with the
// backend, driven by line commands on stdin.
type BoardCmd struct {
	filter filterFlags
	noLive bool
}

func (c *BoardCmd) Name() string      { return "board" }
func (c *BoardCmd) Aliases() []string { return nil }
func (c *BoardCmd) Synopsis() string  { return "Interactive board with live updates" }
func (c *BoardCmd) Usage() string {
	return "taskboard board [common flags] [--title <text>] [--description <text>] [--status <status>] [--no-live]"
}
func (c *BoardCmd) NeedsAuth() bool { return true }

func (c *BoardCmd) RegisterFlags(fs *flag.FlagSet) {
	c.filter.register(fs)
	fs.BoolVar(&c.noLive, "no-live", false, "")
}

func (c *BoardCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	filter, err := c.filter.Filter()
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	con := &console{p: output.NewPrinter(out), out: out, quiet: cfg.Quiet}
	b := board.New(svc, con, board.Options{
		PageSize: cfg.Settings.PageSize,
		Coalesce: cfg.Settings.RefreshCoalesce,
		Filter:   filter,
		Logger:   cfg.Log(),
	})
	b.Start(ctx)
	defer b.Close()

	if !c.noLive {
		sub := newSubscriber(cfg, con.busState).Subscribe(ctx, func(t service.Task) {
			if cfg.Settings.NotifyBell {
				con.bell()
			}
			b.Notify(t)
		})
		// Deferred after Close so it runs first: no Notify after Close.
		defer sub.Unsubscribe()
	}

	s := &boardSession{
		cfg:   cfg,
		svc:   svc,
		board: b,
		con:   con,
		users: newUserDirectory(svc),
	}
	return s.loop(ctx, cfg.Input(), isTerminal(cfg.Input()))
}

// console is the board's View. It serializes everything the session
// writes so renders, toasts and command output never interleave.
type console struct {
	mu    sync.Mutex
	p     *output.Printer
	out   io.Writer
	quiet bool
}

func (c *console) Render(s board.State) {
	if s.Loading {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.Board(s)
}

func (c *console) Toast(t board.Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.Toast(t)
}

// Do runs fn with exclusive access to the printer.
func (c *console) Do(fn func(p *output.Printer, w io.Writer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.p, c.out)
}

func (c *console) Printf(format string, args ...any) {
	c.Do(func(_ *output.Printer, w io.Writer) {
		fmt.Fprintf(w, format, args...)
	})
}

func (c *console) bell() {
	c.Printf("\a")
}

func (c *console) busState(s live.State) {
	if c.quiet || s == live.Connecting {
		return
	}
	c.Printf("bus: %s\n", s)
}

// boardSession executes board line commands.
type boardSession struct {
	cfg   *config.Config
	svc   service.Service
	board *board.Board
	con   *console
	users *userDirectory

	// pending is the action awaiting a yes/no answer on the next line.
	pending func(ctx context.Context)
}

func (s *boardSession) loop(ctx context.Context, in io.Reader, interactive bool) int {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		if interactive && s.pending == nil {
			s.con.Printf("> ")
		}
		select {
		case <-ctx.Done():
			return exitcode.Success
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						s.con.Printf("error: read input: %v\n", err)
						return exitcode.UserError
					}
				default:
				}
				return exitcode.Success
			}
			if quit := s.exec(ctx, line); quit {
				return exitcode.Success
			}
		}
	}
}

// exec runs one line and reports whether the session should end.
func (s *boardSession) exec(ctx context.Context, line string) bool {
	if s.pending != nil {
		action := s.pending
		s.pending = nil
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			action(ctx)
		default:
			s.con.Printf("cancelled\n")
		}
		return false
	}

	words, err := SplitLine(line)
	if err != nil {
		s.errorf("%v", err)
		return false
	}
	if len(words) == 0 {
		return false
	}

	name, args := strings.ToLower(words[0]), words[1:]
	switch name {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		s.con.Printf("%s", boardHelp)
	case "filter":
		s.setFilter(args)
	case "page":
		s.page(args)
	case "next", "n":
		s.checkPage(s.board.NextPage())
	case "prev", "p":
		s.checkPage(s.board.PrevPage())
	case "refresh", "r":
		s.board.Refresh()
	case "show":
		s.show(ctx, args)
	case "add":
		s.add(ctx, args)
	case "edit":
		s.edit(ctx, args)
	case "done":
		s.done(ctx, args)
	case "rm", "delete":
		s.remove(ctx, args)
	case "notifications", "inbox":
		s.notifications()
	case "clear":
		s.board.Inbox().Clear()
		s.con.Printf("notifications cleared\n")
	default:
		s.errorf("unknown board command: %s (try: help)", name)
	}
	return false
}

func (s *boardSession) errorf(format string, args ...any) {
	s.con.Printf("error: "+format+"\n", args...)
}

// report prints validation errors from a mutation. Service failures are
// shown as a toast by the board; ErrClosed needs no message.
func (s *boardSession) report(err error) {
	var ferrs forms.Errors
	if errors.As(err, &ferrs) {
		for _, fe := range ferrs {
			s.errorf("%s", fe.Error())
		}
	}
}

func (s *boardSession) requireAdmin() bool {
	if s.cfg.Session().IsAdmin() {
		return true
	}
	s.errorf("admin role required")
	return false
}

func (s *boardSession) setFilter(args []string) {
	kv, err := ParseAssignments(args, "title", "description", "status")
	if err != nil {
		s.errorf("%v", err)
		return
	}
	f := filterFlags{title: kv["title"], description: kv["description"], status: kv["status"]}
	filter, err := f.Filter()
	if err != nil {
		s.errorf("%v", err)
		return
	}
	s.board.SetFilter(filter)
}

func (s *boardSession) page(args []string) {
	if len(args) != 1 {
		s.errorf("usage: page <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		s.errorf("invalid page number: %s", args[0])
		return
	}
	s.checkPage(s.board.SetPage(n - 1))
}

func (s *boardSession) checkPage(err error) {
	if err != nil {
		s.errorf("%v", err)
	}
}

func (s *boardSession) show(ctx context.Context, args []string) {
	id, err := ParseTaskID(args)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		s.errorf("task %d: %v", id, err)
		return
	}
	s.con.Do(func(p *output.Printer, _ io.Writer) { p.TaskDetail(task) })
}

func (s *boardSession) add(ctx context.Context, args []string) {
	if !s.requireAdmin() {
		return
	}
	changes, err := parseChanges(args)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	in, err := changes.apply(ctx, s.users, service.TaskInput{Status: service.StatusPending})
	if err != nil {
		s.errorf("%v", err)
		return
	}
	s.report(s.board.Create(ctx, in))
}

func (s *boardSession) edit(ctx context.Context, args []string) {
	if !s.requireAdmin() {
		return
	}
	if len(args) == 0 {
		s.errorf("%v", ErrTaskIDRequired)
		return
	}
	id, err := ParseTaskID(args[:1])
	if err != nil {
		s.errorf("%v", err)
		return
	}
	changes, err := parseChanges(args[1:])
	if err != nil {
		s.errorf("%v", err)
		return
	}
	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		s.errorf("task %d: %v", id, err)
		return
	}
	current := task.Input()
	in, err := changes.apply(ctx, s.users, current)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	if in == current {
		s.con.Printf("no changes\n")
		return
	}
	s.report(s.board.Update(ctx, id, in))
}

func (s *boardSession) done(ctx context.Context, args []string) {
	if !s.requireAdmin() {
		return
	}
	id, err := ParseTaskID(args)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		s.errorf("task %d: %v", id, err)
		return
	}
	in := task.Input()
	in.Status = service.StatusCompleted
	s.report(s.board.Update(ctx, id, in))
}

func (s *boardSession) remove(ctx context.Context, args []string) {
	if !s.requireAdmin() {
		return
	}
	id, err := ParseTaskID(args)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	s.con.Printf("delete task #%d? [y/N] ", id)
	s.pending = func(ctx context.Context) {
		s.report(s.board.Delete(ctx, id))
	}
}

func (s *boardSession) notifications() {
	list := s.board.Inbox().List()
	s.con.Do(func(p *output.Printer, w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "no notifications")
			return
		}
		for _, n := range list {
			p.Notification(n)
		}
	})
}

// parseChanges reads key=value task fields.
func parseChanges(args []string) (taskChanges, error) {
	kv, err := ParseAssignments(args, "title", "description", "status", "assignee")
	if err != nil {
		return taskChanges{}, err
	}
	var ch taskChanges
	for key, value := range kv {
		v := value
		switch key {
		case "title":
			ch.title = &v
		case "description":
			ch.description = &v
		case "status":
			ch.status = &v
		case "assignee":
			ch.assignee = &v
		}
	}
	return ch, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const boardHelp = `Board commands:
  filter [title=<text>] [description=<text>] [status=<status>]
                       Replace the filter (no fields clears it)
  page <n>             Go to page n
  next, prev           Move one page
  refresh              Reload the current page
  show <id>            Show a task
  add title=<t> assignee=<user> [description=<d>] [status=<s>]
  edit <id> [title=..] [description=..] [status=..] [assignee=..]
  done <id>            Mark a task completed
  rm <id>              Delete a task (asks for confirmation)
  notifications        List received notifications
  clear                Clear notifications
  quit                 Leave the board
Values with spaces must be double-quoted.
`
