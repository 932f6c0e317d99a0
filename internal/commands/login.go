package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/forms"
	"taskboard/internal/service"
	"taskboard/internal/session"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email    string
	password string
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Sign in and store the session" }
func (c *LoginCmd) Usage() string {
	return "taskboard login [common flags] --email <email> [--password <password>]"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.password, "password", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	creds := service.Credentials{Email: c.email, Password: c.password}
	if creds.Password == "" && creds.Email != "" {
		pw, err := newLineReader(cfg).ReadSecret(errOut, "password: ")
		if err != nil && err != io.EOF {
			fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
			return exitcode.UserError
		}
		creds.Password = pw
	}
	if err := forms.Validate(creds); err != nil {
		return fail(errOut, err)
	}

	res, err := svc.Login(ctx, creds)
	if err != nil {
		return fail(errOut, fmt.Errorf("login failed: %w", err))
	}

	sess := session.Session{
		Token: res.Token,
		Role:  session.Role(res.Role),
		Name:  res.Name,
		Email: res.Email,
	}
	if sess.Email == "" {
		sess.Email = creds.Email
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if err := cfg.Session().Set(sess); err != nil {
		fmt.Fprintf(errOut, "error: failed to save session: %v\n", err)
		return exitcode.AuthError
	}

	cfg.Log().Info("signed in", "email", sess.Email, "role", string(sess.Role))
	printOK(cfg, out)
	return exitcode.Success
}
