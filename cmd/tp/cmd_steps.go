package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/satyaki-up/testplan/internal/testplan"
	"github.com/satyaki-up/testplan/internal/workitems"
)

var stepFields = []string{
	workitems.FieldID,
	workitems.FieldWorkItemType,
	workitems.FieldTeamProject,
	workitems.FieldTitle,
	workitems.FieldSteps,
}

type StepsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

func NewStepsCmd(flags *Flags) *StepsCmd {
	return &StepsCmd{flags: flags}
}

func (cmd *StepsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "steps",
		Usage:     "Print the parsed steps of one test case",
		UsageText: "tp steps [--json] ID",
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

func (cmd *StepsCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := workItemArg(c)
	if err != nil {
		return err
	}

	b, err := cmd.flags.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	item, err := b.items.GetWorkItem(ctx, cmd.flags.Config.Project, id, workitems.GetOptions{Fields: stepFields})
	if err != nil {
		return err
	}
	if item.Type() != workitems.TypeTestCase {
		cmd.flags.Log.Warn().Int("work_item", id).Str("type", item.Type()).Msg("work item is not a test case")
	}

	steps := testplan.ParseSteps(item.StepScript())
	if cmd.jsonOutput {
		return writeJSON(c.Root().Writer, steps)
	}
	NewRenderer(c.Root().Writer).Steps(item, steps)
	return nil
}
