package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/satyaki-up/testplan/internal/db"
	"github.com/satyaki-up/testplan/internal/logging"
	"github.com/satyaki-up/testplan/internal/workitems"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(&Flags{}).Run(ctx, os.Args); err != nil {
		return renderError(err)
	}
	return 0
}

func newApp(flags *Flags) *cli.Command {
	var logCloser func()

	app := &cli.Command{
		Name:      "tp",
		Usage:     "Show the requirements, test cases and test steps behind a work item",
		UsageText: "tp [global options] command [command options]",
		Description: `tp climbs from any work item to its owning Requirement or Feature and prints
the requirements under test, the test cases that verify each one, their latest
outcome and their parsed test steps.

Settings are read from the nearest testplan.yaml above the working directory.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error)",
				Sources:     cli.EnvVars("TP_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("TP_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (defaults to the nearest testplan.yaml)",
				Sources:     cli.EnvVars("TP_CONFIG"),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "source",
				Usage:       "where to read work items from (ado, snapshot)",
				Destination: &flags.Source,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := flags.loadConfig()
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("%w: setup logger: %w", workitems.ErrInvalidInput, err)
			}
			flags.Log = logger
			logCloser = closer

			if cfg.Path != "" {
				logger.Debug().Str("config", cfg.Path).Str("source", string(cfg.Source)).Msg("loaded config")
			}
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = NewResolveCmd(flags).Register(app)
	app = NewStepsCmd(flags).Register(app)
	app = NewImportCmd(flags).Register(app)
	app = NewWatchCmd(flags).Register(app)
	return app
}

func renderError(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	switch {
	case errors.Is(err, workitems.ErrInvalidInput), errors.Is(err, db.ErrSchemaMismatch):
		return 2
	case errors.Is(err, workitems.ErrNotFound):
		return 3
	default:
		return 1
	}
}

// workItemArg parses the single positional work item id.
func workItemArg(c *cli.Command) (int, error) {
	if c.Args().Len() != 1 {
		return 0, fmt.Errorf("%w: expected exactly one work item id", workitems.ErrInvalidInput)
	}
	id, err := strconv.Atoi(c.Args().First())
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid work item id %q", workitems.ErrInvalidInput, c.Args().First())
	}
	return id, nil
}
