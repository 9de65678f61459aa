// Package config loads testplan.yaml, the settings shared by every tp command.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/satyaki-up/testplan/internal/workitems"
)

const FileName = "testplan.yaml"

// Source selects where work items are read from.
type Source string

const (
	SourceADO      Source = "ado"
	SourceSnapshot Source = "snapshot"
)

var sources = []Source{SourceADO, SourceSnapshot}

type Config struct {
	Path string `yaml:"-"`

	Source       Source        `yaml:"source"`
	BaseURL      string        `yaml:"base_url"`
	Organization string        `yaml:"organization"`
	Project      string        `yaml:"project"`
	TokenEnv     string        `yaml:"token_env"`
	APIVersion   string        `yaml:"api_version"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`

	// Snapshot is the SQLite mirror path, relative to the config file.
	Snapshot string `yaml:"snapshot"`

	MaxParentDepth      int    `yaml:"max_parent_depth"`
	Concurrency         int    `yaml:"concurrency"`
	Locale              string `yaml:"locale"`
	UserAcceptanceField string `yaml:"user_acceptance_field"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func DefaultConfig() Config {
	return Config{
		Source:              SourceADO,
		BaseURL:             "https://dev.azure.com",
		TokenEnv:            "AZURE_DEVOPS_PAT",
		APIVersion:          "7.1",
		Timeout:             30 * time.Second,
		Retries:             3,
		Snapshot:            filepath.Join(".testplan", "snapshot.db"),
		MaxParentDepth:      50,
		Concurrency:         8,
		Locale:              "en",
		UserAcceptanceField: workitems.DefaultUserAcceptanceField,
		LogLevel:            "warn",
	}
}

// Discover walks from startDir toward the filesystem root and loads the first
// testplan.yaml it finds. It returns nil when there is none.
func Discover(startDir string) (*Config, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, FileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return Load(candidate)
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Load decodes path over the defaults. The result is not validated until
// environment overrides have been applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Path = path
	cfg.applyDefaults()

	if cfg.Snapshot != "" && !filepath.IsAbs(cfg.Snapshot) {
		cfg.Snapshot = filepath.Clean(filepath.Join(filepath.Dir(path), cfg.Snapshot))
	}
	return &cfg, nil
}

// applyDefaults restores defaults for keys present but left empty.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Source == "" {
		c.Source = defaults.Source
	}
	if c.BaseURL == "" {
		c.BaseURL = defaults.BaseURL
	}
	if c.TokenEnv == "" {
		c.TokenEnv = defaults.TokenEnv
	}
	if c.APIVersion == "" {
		c.APIVersion = defaults.APIVersion
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxParentDepth == 0 {
		c.MaxParentDepth = defaults.MaxParentDepth
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Locale == "" {
		c.Locale = defaults.Locale
	}
	if c.UserAcceptanceField == "" {
		c.UserAcceptanceField = defaults.UserAcceptanceField
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// ApplyEnv overrides file settings with TP_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("TP_SOURCE"); v != "" {
		c.Source = Source(v)
	}
	if v := getenv("TP_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := getenv("TP_ORGANIZATION"); v != "" {
		c.Organization = v
	}
	if v := getenv("TP_PROJECT"); v != "" {
		c.Project = v
	}
	if v := getenv("TP_SNAPSHOT"); v != "" {
		c.Snapshot = v
	}
	if v := getenv("TP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TP_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

// Token returns the personal access token named by token_env.
func (c *Config) Token(getenv func(string) string) string {
	return getenv(c.TokenEnv)
}

func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if !slices.Contains(sources, c.Source) {
		errs = errs.Append("source", fmt.Errorf("must be one of %v, got %q", sources, c.Source))
	}

	switch c.Source {
	case SourceADO:
		if c.Organization == "" {
			errs = errs.Append("organization", fmt.Errorf("required for source %q", SourceADO))
		}
		if c.Project == "" {
			errs = errs.Append("project", fmt.Errorf("required for source %q", SourceADO))
		}
		if err := validateBaseURL(c.BaseURL); err != nil {
			errs = errs.Append("base_url", err)
		}
		if c.APIVersion == "" {
			errs = errs.Append("api_version", fmt.Errorf("cannot be empty"))
		}
	case SourceSnapshot:
		if c.Snapshot == "" {
			errs = errs.Append("snapshot", fmt.Errorf("required for source %q", SourceSnapshot))
		}
	}

	if c.Timeout < 0 {
		errs = errs.Append("timeout", fmt.Errorf("cannot be negative"))
	}
	if c.Retries < 0 {
		errs = errs.Append("retries", fmt.Errorf("cannot be negative"))
	}
	if c.MaxParentDepth < 1 {
		errs = errs.Append("max_parent_depth", fmt.Errorf("must be at least 1"))
	}
	if c.Concurrency < 1 {
		errs = errs.Append("concurrency", fmt.Errorf("must be at least 1"))
	}
	if _, err := language.Parse(c.Locale); err != nil {
		errs = errs.Append("locale", fmt.Errorf("invalid locale %q: %w", c.Locale, err))
	}
	if c.UserAcceptanceField == "" {
		errs = errs.Append("user_acceptance_field", fmt.Errorf("cannot be empty"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = errs.Append("log_level", err)
	}

	return errs.ToError()
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
