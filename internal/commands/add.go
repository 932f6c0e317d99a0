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
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	title       string
	description string
	status      string
	assignee    string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task (admin)" }
func (c *AddCmd) Usage() string {
	return "taskboard add [common flags] --title <title> --assignee <user> [--description <text>] [--status <status>]"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.title, "title", "", "")
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.assignee, "assignee", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !requireAdmin(cfg, errOut) {
		return exitcode.AuthError
	}

	title := c.title
	if title == "" && len(args) > 0 {
		// Positional title, like `taskboard add Write report --assignee ann`.
		title = strings.Join(args, " ")
	} else if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	in := service.TaskInput{
		Title:       strings.TrimSpace(title),
		Description: c.description,
		Status:      service.StatusPending,
	}
	if s := strings.TrimSpace(c.status); s != "" {
		st, err := service.ParseStatus(s)
		if err != nil {
			return usageError(errOut, "%v", err)
		}
		in.Status = st
	}
	if strings.TrimSpace(c.assignee) != "" {
		id, err := newUserDirectory(svc).Resolve(ctx, c.assignee)
		if err != nil {
			return fail(errOut, err)
		}
		in.AssignedUserID = id
	}

	if err := forms.Validate(in); err != nil {
		return fail(errOut, err)
	}
	if err := svc.CreateTask(ctx, in); err != nil {
		return fail(errOut, fmt.Errorf("create task: %w", err))
	}

	printOK(cfg, out)
	return exitcode.Success
}
