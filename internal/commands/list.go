package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/output"
	"taskboard/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// filterFlags are the task filter flags shared by list and board.
type filterFlags struct {
	title       string
	description string
	status      string
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "")
	fs.StringVar(&f.description, "description", "", "")
	fs.StringVar(&f.status, "status", "", "")
}

// Filter builds the filter. Values are trimmed; empty values do not filter.
func (f *filterFlags) Filter() (service.Filter, error) {
	filter := service.Filter{
		Title:       strings.TrimSpace(f.title),
		Description: strings.TrimSpace(f.description),
	}
	if s := strings.TrimSpace(f.status); s != "" {
		st, err := service.ParseStatus(s)
		if err != nil {
			return service.Filter{}, err
		}
		filter.Status = st
	}
	return filter, nil
}

// ListCmd implements the list command.
// Handles both `taskboard` (no args) and `taskboard list [filters]`.
type ListCmd struct {
	filter filterFlags
	page   int
}

// SetPage sets the page number (for testing).
func (c *ListCmd) SetPage(page int) {
	c.page = page
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskboard list [--title <text>] [--description <text>] [--status <status>] [--page <n>]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	c.filter.register(fs)
	fs.IntVar(&c.page, "page", 1, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if c.page < 1 {
		return usageError(errOut, "invalid page number: %d", c.page)
	}
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	filter, err := c.filter.Filter()
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	page, err := svc.ListTasks(ctx, service.TaskQuery{
		Filter: filter,
		Page:   c.page - 1,
		Size:   cfg.Settings.PageSize,
	})
	if err != nil {
		return fail(errOut, err)
	}

	if len(page.Content) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	p := output.NewPrinter(out)
	for _, t := range page.Content {
		p.Task(t)
	}
	if !cfg.Quiet {
		p.PageFooter(c.page-1, page.TotalPages)
	}
	return exitcode.Success
}
