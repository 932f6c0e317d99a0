package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd prints the stored session.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Show the signed-in user" }
func (c *WhoamiCmd) Usage() string     { return "taskboard whoami [common flags]" }
func (c *WhoamiCmd) NeedsAuth() bool   { return false }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	sess := cfg.Session().Get()
	if sess == nil || sess.Token == "" {
		fmt.Fprintln(out, "not logged in")
		return exitcode.Success
	}

	fmt.Fprintf(out, "name:    %s\n", orDash(sess.Name))
	fmt.Fprintf(out, "email:   %s\n", orDash(sess.Email))
	fmt.Fprintf(out, "role:    %s\n", orDash(string(sess.Role)))
	if exp, ok := tokenExpiry(sess.Token); ok {
		state := "valid"
		if time.Now().After(exp) {
			state = "expired"
		}
		fmt.Fprintf(out, "expires: %s (%s)\n", exp.UTC().Format(time.RFC3339), state)
	}
	return exitcode.Success
}

// tokenExpiry reads the exp claim of a JWT. The signature is not checked.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
