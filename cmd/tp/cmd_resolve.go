package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/satyaki-up/testplan/internal/logging"
	"github.com/satyaki-up/testplan/internal/testplan"
)

type ResolveCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

func NewResolveCmd(flags *Flags) *ResolveCmd {
	return &ResolveCmd{flags: flags}
}

func (cmd *ResolveCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "resolve",
		Usage:     "Print the test plan of a work item",
		UsageText: "tp resolve [--json] ID",
		Description: `Climbs from the work item to its Requirement or Feature and prints the
requirements under test with their test cases, latest outcomes and steps.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ResolveCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := workItemArg(c)
	if err != nil {
		return err
	}

	b, err := cmd.flags.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	ctrl := newController(cmd.flags, b, id)
	state := ctrl.OnLoaded(ctx, testplan.LoadedArgs{ID: id})
	return printState(c, state, cmd.jsonOutput)
}

func newController(flags *Flags, b *backend, id int) *testplan.Controller {
	host := testplan.ItemHost{Items: b.items, Project: flags.Config.Project, ID: id}
	return testplan.NewController(flags.newResolver(b), host, logging.Component(flags.Log, "controller"))
}

// printState writes s and returns the error of a failed cycle so it sets
// the exit code.
func printState(c *cli.Command, s testplan.State, jsonOutput bool) error {
	out := c.Root().Writer
	if jsonOutput {
		if err := writeStateJSON(out, s); err != nil {
			return err
		}
	} else if s.Phase != testplan.PhaseFailed {
		NewRenderer(out).State(s)
	}
	if s.Phase == testplan.PhaseFailed {
		return s.Err
	}
	return nil
}
