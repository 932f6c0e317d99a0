// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/board"
	"taskboard/internal/service"
)

const (
	// Separator is the rule printed around board sections.
	Separator = "------------"

	// statusWidth fits the longest status name.
	statusWidth = 11

	timeLayout = "2006-01-02 15:04"
)

// Printer writes formatted output to one writer. Colours are used only when
// the writer is a terminal that supports them.
type Printer struct {
	w      io.Writer
	status map[service.Status]lipgloss.Style
	toast  map[board.Severity]lipgloss.Style
	dim    lipgloss.Style
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		status: map[service.Status]lipgloss.Style{
			service.StatusPending:    r.NewStyle().Foreground(lipgloss.Color("3")),
			service.StatusInProgress: r.NewStyle().Foreground(lipgloss.Color("4")),
			service.StatusCompleted:  r.NewStyle().Foreground(lipgloss.Color("2")),
		},
		toast: map[board.Severity]lipgloss.Style{
			board.Info:    r.NewStyle().Foreground(lipgloss.Color("6")),
			board.Success: r.NewStyle().Foreground(lipgloss.Color("2")),
			board.Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
		dim: r.NewStyle().Faint(true),
	}
}

// Task prints one task line.
// Format: "{ID:>5}  {STATUS:<11}  {TITLE}[  @{ASSIGNEE}]\n"
func (p *Printer) Task(t service.Task) {
	line := fmt.Sprintf("%5d  %s  %s", t.ID, p.Status(t.Status), normalizeTitle(t.Title))
	if t.AssignedUserName != "" {
		line += "  " + p.dim.Render("@"+t.AssignedUserName)
	}
	fmt.Fprintln(p.w, line)
}

// Status renders a status padded to a fixed width.
func (p *Printer) Status(s service.Status) string {
	padded := fmt.Sprintf("%-*s", statusWidth, s)
	if style, ok := p.status[s]; ok {
		return style.Render(padded)
	}
	return padded
}

// TaskDetail prints every field of a task.
func (p *Printer) TaskDetail(t service.Task) {
	fmt.Fprintf(p.w, "id:          %d\n", t.ID)
	fmt.Fprintf(p.w, "title:       %s\n", normalizeTitle(t.Title))
	fmt.Fprintf(p.w, "status:      %s\n", strings.TrimRight(p.Status(t.Status), " "))
	fmt.Fprintf(p.w, "assignee:    %s\n", assignee(t))
	fmt.Fprintf(p.w, "created:     %s\n", formatTime(t.CreatedAt.Time))
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		fmt.Fprintln(p.w, "description: (none)")
		return
	}
	fmt.Fprintln(p.w, "description:")
	for _, line := range strings.Split(desc, "\n") {
		fmt.Fprintf(p.w, "  %s\n", strings.TrimRight(line, "\r"))
	}
}

// PageFooter prints the 1-based page position.
func (p *Printer) PageFooter(page, totalPages int) {
	fmt.Fprintf(p.w, "page %d/%d\n", page+1, max(totalPages, 1))
}

// User prints one user line.
// Format: "{ID:>5}  {NAME}  <{EMAIL}>[  {ROLE}]\n"
func (p *Printer) User(u service.User) {
	line := fmt.Sprintf("%5d  %s  <%s>", u.ID, normalizeTitle(u.Name), u.Email)
	if u.Role != "" {
		line += "  " + p.dim.Render(u.Role)
	}
	fmt.Fprintln(p.w, line)
}

// Notification prints one inbox entry.
func (p *Printer) Notification(n board.Notification) {
	fmt.Fprintf(p.w, "[%s] #%d %s (%s)\n",
		n.ReceivedAt.Local().Format("15:04:05"), n.Task.ID, normalizeTitle(n.Task.Title), n.Task.Status)
}

// Toast prints a status message prefixed with its severity.
func (p *Printer) Toast(t board.Toast) {
	prefix := t.Severity.String() + ":"
	if style, ok := p.toast[t.Severity]; ok {
		prefix = style.Render(prefix)
	}
	fmt.Fprintf(p.w, "%s %s\n", prefix, t.Message)
}

// Board prints a board snapshot: filter line, tasks and page footer.
func (p *Printer) Board(s board.State) {
	fmt.Fprintln(p.w, Separator)
	fmt.Fprintln(p.w, FilterSummary(s.Filter))
	if s.Unread > 0 {
		fmt.Fprintf(p.w, "notifications: %d\n", s.Unread)
	}
	fmt.Fprintln(p.w, Separator)
	if len(s.Tasks) == 0 {
		fmt.Fprintln(p.w, "no tasks found")
	}
	for _, t := range s.Tasks {
		p.Task(t)
	}
	p.PageFooter(s.Page, s.TotalPages)
}

// FilterSummary describes a filter in one line.
func FilterSummary(f service.Filter) string {
	if f.IsZero() {
		return "filter: (none)"
	}
	var parts []string
	if f.Title != "" {
		parts = append(parts, fmt.Sprintf("title=%q", f.Title))
	}
	if f.Description != "" {
		parts = append(parts, fmt.Sprintf("description=%q", f.Description))
	}
	if f.Status != "" {
		parts = append(parts, "status="+string(f.Status))
	}
	return "filter: " + strings.Join(parts, " ")
}

func assignee(t service.Task) string {
	switch {
	case t.AssignedUserName != "" && t.AssignedUserID != 0:
		return fmt.Sprintf("%s (#%d)", t.AssignedUserName, t.AssignedUserID)
	case t.AssignedUserName != "":
		return t.AssignedUserName
	case t.AssignedUserID != 0:
		return fmt.Sprintf("#%d", t.AssignedUserID)
	default:
		return "(unassigned)"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "(unknown)"
	}
	return t.UTC().Format(timeLayout)
}

// normalizeTitle normalizes a title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
