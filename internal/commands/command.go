// Package commands provides the command interface and implementations.
//
// Each command registers itself with DefaultRegistry from init. Commands
// print results to out and problems to errOut as "error: <message>" lines,
// and return an exitcode value. Admin-only commands check the session role
// themselves; the backend still has the final say.
package commands

import (
	"context"
	"flag"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a stored session.
	// Commands like help, version, login, logout, whoami return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, settings, session, logger).
	// svc is always provided; login and register use it without a session.
	// args contains positional arguments after flag parsing.
	// ctx is cancelled on SIGINT/SIGTERM; long-running commands return then.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}
