package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/forms"
	"taskboard/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// taskChanges holds the fields given on the command line. Nil fields are
// left as they are.
type taskChanges struct {
	title       *string
	description *string
	status      *string
	assignee    *string
}

func optional(dst **string) func(string) error {
	return func(s string) error {
		*dst = &s
		return nil
	}
}

func (ch *taskChanges) register(fs *flag.FlagSet) {
	fs.Func("title", "", optional(&ch.title))
	fs.Func("description", "", optional(&ch.description))
	fs.Func("status", "", optional(&ch.status))
	fs.Func("assignee", "", optional(&ch.assignee))
}

// apply returns in with the changes applied.
func (ch *taskChanges) apply(ctx context.Context, users *userDirectory, in service.TaskInput) (service.TaskInput, error) {
	if ch.title != nil {
		in.Title = strings.TrimSpace(*ch.title)
	}
	if ch.description != nil {
		in.Description = *ch.description
	}
	if ch.status != nil {
		st, err := service.ParseStatus(*ch.status)
		if err != nil {
			return in, err
		}
		in.Status = st
	}
	if ch.assignee != nil {
		id, err := users.Resolve(ctx, *ch.assignee)
		if err != nil {
			return in, err
		}
		in.AssignedUserID = id
	}
	return in, nil
}

// EditCmd implements the edit command.
type EditCmd struct {
	changes taskChanges
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return []string{"update"} }
func (c *EditCmd) Synopsis() string  { return "Update a task (admin)" }
func (c *EditCmd) Usage() string {
	return "taskboard edit [common flags] <id> [--title <title>] [--description <text>] [--status <status>] [--assignee <user>]"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.changes.register(fs)
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !requireAdmin(cfg, errOut) {
		return exitcode.AuthError
	}
	id, err := ParseTaskID(args)
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	task, err := svc.GetTask(ctx, id)
	if err != nil {
		return fail(errOut, fmt.Errorf("task %d: %w", id, err))
	}

	current := task.Input()
	in, err := c.changes.apply(ctx, newUserDirectory(svc), current)
	if err != nil {
		return fail(errOut, err)
	}
	if in == current {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no changes")
		}
		return exitcode.Success
	}

	if err := forms.Validate(in); err != nil {
		return fail(errOut, err)
	}
	if err := svc.UpdateTask(ctx, id, in); err != nil {
		return fail(errOut, fmt.Errorf("update task %d: %w", id, err))
	}

	printOK(cfg, out)
	return exitcode.Success
}
