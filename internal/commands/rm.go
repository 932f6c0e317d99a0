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
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	force bool
}

// SetForce sets the force flag (for testing).
func (c *RmCmd) SetForce(force bool) {
	c.force = force
}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task (admin)" }
func (c *RmCmd) Usage() string     { return "taskboard rm [common flags] [--force] <id>" }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "")
	fs.BoolVar(&c.force, "f", false, "")
}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !requireAdmin(cfg, errOut) {
		return exitcode.AuthError
	}
	id, err := ParseTaskID(args)
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	if !c.force {
		task, err := svc.GetTask(ctx, id)
		if err != nil {
			return fail(errOut, fmt.Errorf("task %d: %w", id, err))
		}
		question := fmt.Sprintf("delete task #%d %q?", task.ID, task.Title)
		if !newLineReader(cfg).confirm(errOut, question) {
			return usageError(errOut, "not confirmed (use --force)")
		}
	}

	if err := svc.DeleteTask(ctx, id); err != nil {
		return fail(errOut, fmt.Errorf("delete task %d: %w", id, err))
	}

	printOK(cfg, out)
	return exitcode.Success
}
