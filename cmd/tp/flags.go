package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/satyaki-up/testplan/internal/ado"
	"github.com/satyaki-up/testplan/internal/config"
	"github.com/satyaki-up/testplan/internal/db"
	"github.com/satyaki-up/testplan/internal/logging"
	"github.com/satyaki-up/testplan/internal/snapshot"
	"github.com/satyaki-up/testplan/internal/testplan"
	"github.com/satyaki-up/testplan/internal/workitems"
)

// Flags holds the global options. Config and Log are set in the Before hook.
type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	Source     string

	Config *config.Config
	Log    zerolog.Logger
}

// loadConfig reads --config when given, otherwise the first testplan.yaml
// above the working directory, falling back to defaults.
func (f *Flags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.ConfigPath != "" {
		cfg, err = config.Load(f.ConfigPath)
	} else {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return nil, fmt.Errorf("working directory: %w", cwdErr)
		}
		cfg, err = config.Discover(cwd)
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		d := config.DefaultConfig()
		cfg = &d
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("%w: %w", workitems.ErrInvalidInput, err)
	}
	if f.Source != "" {
		cfg.Source = config.Source(f.Source)
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
	return cfg, nil
}

// backend is a reader pair with the resources behind it.
type backend struct {
	items workitems.ItemReader
	tests workitems.TestReader
	close func()
}

func (f *Flags) openBackend(ctx context.Context) (*backend, error) {
	cfg := f.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config: %w", workitems.ErrInvalidInput, err)
	}

	switch cfg.Source {
	case config.SourceSnapshot:
		database, err := db.OpenReadOnly(ctx, cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		store := snapshot.NewStore(database)
		return &backend{items: store, tests: store, close: closeDB(database, f.Log)}, nil
	default:
		client := ado.NewClient(ado.Config{
			BaseURL:      cfg.BaseURL,
			Organization: cfg.Organization,
			Token:        cfg.Token(os.Getenv),
			APIVersion:   cfg.APIVersion,
			Timeout:      cfg.Timeout,
			Retries:      cfg.Retries,
		}, logging.Component(f.Log, "ado"))
		return &backend{items: client, tests: client, close: func() {}}, nil
	}
}

func (f *Flags) newResolver(b *backend) *testplan.Resolver {
	return testplan.NewResolver(b.items, b.tests, logging.Component(f.Log, "resolver"), testplan.Options{
		MaxParentDepth:      f.Config.MaxParentDepth,
		Concurrency:         f.Config.Concurrency,
		Locale:              f.Config.Locale,
		UserAcceptanceField: f.Config.UserAcceptanceField,
	})
}

func closeDB(database *sql.DB, log zerolog.Logger) func() {
	return func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close snapshot")
		}
	}
}
