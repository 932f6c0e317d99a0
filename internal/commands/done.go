package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string  { return "Mark a task completed (admin)" }
func (c *DoneCmd) Usage() string     { return "taskboard done [common flags] <id>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
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

	// Already completed: nothing to send.
	if task.Status == service.StatusCompleted {
		printOK(cfg, out)
		return exitcode.Success
	}

	in := task.Input()
	in.Status = service.StatusCompleted
	if err := svc.UpdateTask(ctx, id, in); err != nil {
		return fail(errOut, fmt.Errorf("update task %d: %w", id, err))
	}

	printOK(cfg, out)
	return exitcode.Success
}
