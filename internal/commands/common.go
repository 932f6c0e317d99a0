package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/forms"
)

// fail prints err and returns its exit code. Validation errors print one
// line per field.
func fail(errOut io.Writer, err error) int {
	var ferrs forms.Errors
	if errors.As(err, &ferrs) {
		for _, fe := range ferrs {
			fmt.Fprintf(errOut, "error: %s\n", fe.Error())
		}
		return exitcode.UserError
	}
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitcode.For(err)
}

// usageError prints a user error and returns exitcode.UserError.
func usageError(errOut io.Writer, format string, args ...any) int {
	fmt.Fprintf(errOut, "error: "+format+"\n", args...)
	return exitcode.UserError
}

// requireAdmin reports whether the stored session has the admin role and
// prints an error if not.
func requireAdmin(cfg *config.Config, errOut io.Writer) bool {
	if cfg.Session().IsAdmin() {
		return true
	}
	fmt.Fprintln(errOut, "error: admin role required")
	return false
}

// printOK prints "ok" unless quiet.
func printOK(cfg *config.Config, out io.Writer) {
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
}

// lineReader reads prompted answers from the configured input. It is
// created once per command so buffered input is not lost between prompts.
type lineReader struct {
	in  io.Reader
	buf *bufio.Reader
}

func newLineReader(cfg *config.Config) *lineReader {
	in := cfg.Input()
	return &lineReader{in: in, buf: bufio.NewReader(in)}
}

// ReadLine reads one line without the trailing newline. io.EOF is returned
// only when nothing was read.
func (r *lineReader) ReadLine() (string, error) {
	line, err := r.buf.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadSecret reads a line with echo disabled when the input is a terminal.
func (r *lineReader) ReadSecret(prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	if f, ok := r.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return r.ReadLine()
}

// confirm asks a yes/no question. Anything but "y" or "yes" is no.
func (r *lineReader) confirm(prompt io.Writer, question string) bool {
	fmt.Fprintf(prompt, "%s [y/N] ", question)
	answer, err := r.ReadLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
