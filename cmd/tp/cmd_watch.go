package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/satyaki-up/testplan/internal/testplan"
)

type WatchCmd struct {
	flags *Flags

	// flags
	interval   time.Duration
	jsonOutput bool
}

func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Re-resolve a work item's test plan on an interval",
		UsageText: "tp watch [--interval 30s] [--json] ID",
		Description: `Resolves the test plan, then refreshes it every interval until interrupted.
Each refresh starts with empty caches so new outcomes and edits show up.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "time between refreshes",
				Value:       30 * time.Second,
				Destination: &cmd.interval,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output each refresh as a JSON document",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := workItemArg(c)
	if err != nil {
		return err
	}
	if cmd.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", cmd.interval)
	}

	b, err := cmd.flags.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	cmd.watch(ctx, c.Root().Writer, newController(cmd.flags, b, id), id)
	return nil
}

// watch renders every terminal state of ctrl and refreshes it each interval
// until ctx is done.
func (cmd *WatchCmd) watch(ctx context.Context, out io.Writer, ctrl *testplan.Controller, id int) {
	ctrl.Subscribe(func(s testplan.State) {
		if !s.Phase.IsTerminal() {
			return
		}
		if cmd.jsonOutput {
			if err := writeStateJSON(out, s); err != nil {
				cmd.flags.Log.Error().Err(err).Msg("write state")
			}
			return
		}
		fmt.Fprintf(out, "\n%s\n", time.Now().Format(time.Kitchen))
		NewRenderer(out).State(s)
	})

	ctrl.OnLoaded(ctx, testplan.LoadedArgs{ID: id})

	ticker := time.NewTicker(cmd.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ctrl.Reset()
			return
		case <-ticker.C:
			if s := ctrl.OnRefreshed(ctx); s.Phase == testplan.PhaseFailed {
				cmd.flags.Log.Warn().Err(s.Err).Uint64("generation", s.Generation).Msg("refresh failed")
			}
		}
	}
}
