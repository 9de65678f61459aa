package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/satyaki-up/testplan/internal/db"
	"github.com/satyaki-up/testplan/internal/snapshot"
	"github.com/satyaki-up/testplan/internal/workitems"
)

type ImportCmd struct {
	flags *Flags

	// flags
	file       string
	dbPath     string
	jsonOutput bool
}

func NewImportCmd(flags *Flags) *ImportCmd {
	return &ImportCmd{flags: flags}
}

func (cmd *ImportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "import",
		Usage:     "Load a YAML snapshot into the offline mirror",
		UsageText: "tp import [-f FILE] [--snapshot PATH] [--json]",
		Description: `Replaces the contents of the SQLite mirror used by --source snapshot with
the work items, types, suites and test points of a YAML document.

Reads from stdin when no file is given.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to YAML snapshot (reads from stdin if not provided)",
				Destination: &cmd.file,
			},
			&cli.StringFlag{
				Name:        "snapshot",
				Usage:       "mirror database path (defaults to the configured snapshot)",
				Destination: &cmd.dbPath,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output counts as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ImportCmd) run(ctx context.Context, c *cli.Command) error {
	path := cmd.dbPath
	if path == "" {
		path = cmd.flags.Config.Snapshot
	}
	if path == "" {
		return fmt.Errorf("%w: no snapshot path configured", workitems.ErrInvalidInput)
	}

	doc, err := cmd.read()
	if err != nil {
		return err
	}

	database, err := db.Open(ctx, path)
	if err != nil {
		return err
	}
	defer closeDB(database, cmd.flags.Log)()

	stats, err := snapshot.NewStore(database).Import(ctx, doc)
	if err != nil {
		return err
	}
	cmd.flags.Log.Info().Str("snapshot", path).Int("work_items", stats.WorkItems).Msg("imported snapshot")

	out := c.Root().Writer
	if cmd.jsonOutput {
		return writeJSON(out, stats)
	}
	fmt.Fprintf(out, "imported %d work items, %d relations, %d types, %d suites, %d test points into %s\n",
		stats.WorkItems, stats.Relations, stats.Types, stats.Suites, stats.Points, path)
	return nil
}

func (cmd *ImportCmd) read() (*snapshot.Document, error) {
	var reader io.Reader
	if cmd.file != "" {
		f, err := os.Open(cmd.file)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	} else {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, fmt.Errorf("%w: no input provided (stdin is a terminal); use -f or pipe a snapshot", workitems.ErrInvalidInput)
		}
		reader = os.Stdin
	}
	return snapshot.Decode(reader)
}
