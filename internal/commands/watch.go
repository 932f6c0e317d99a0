package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/live"
	"taskboard/internal/output"
	"taskboard/internal/service"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd prints live task notifications until interrupted.
type WatchCmd struct {
	count int
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return []string{"tail"} }
func (c *WatchCmd) Synopsis() string  { return "Print live task notifications" }
func (c *WatchCmd) Usage() string     { return "taskboard watch [common flags] [--count <n>]" }
func (c *WatchCmd) NeedsAuth() bool   { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.count, "count", 0, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if c.count < 0 {
		return usageError(errOut, "invalid count: %d", c.count)
	}
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		received int
	)
	p := output.NewPrinter(out)

	onState := func(s live.State) {
		if cfg.Quiet || s == live.Connecting {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(errOut, "bus: %s\n", s)
	}

	sub := newSubscriber(cfg, onState).Subscribe(ctx, func(t service.Task) {
		mu.Lock()
		defer mu.Unlock()
		p.Notification(board.Notification{Task: t, ReceivedAt: time.Now()})
		if cfg.Settings.NotifyBell {
			fmt.Fprint(out, "\a")
		}
		received++
		if c.count > 0 && received >= c.count {
			cancel()
		}
	})
	defer sub.Unsubscribe()

	<-ctx.Done()
	return exitcode.Success
}
