package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config captures CLI options sourced from config files, environment
// variables, or flags.
type Config struct {
	Pipelines []string `yaml:"pipelines"`
	Branch    string   `yaml:"branch" env:"BRANCH"`
	Workspace string   `yaml:"workspace" env:"WORKSPACE"`

	Format    string `yaml:"format" env:"FORMAT"`
	Verbose   bool   `yaml:"verbose" env:"VERBOSE"`
	TailLines int    `yaml:"tail_lines" env:"TAIL_LINES"`

	HistoryPath string `yaml:"history" env:"HISTORY"`
	Listen      string `yaml:"listen" env:"LISTEN"`
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
)

// Default returns the baseline configuration used when nothing else
// specifies a value.
func Default() Config {
	return Config{
		Format:      FormatPretty,
		TailLines:   20,
		HistoryPath: "stagehand.db",
		Listen:      "127.0.0.1:8632",
	}
}

// Load builds the effective configuration: defaults, then .stagehand.yml
// from the workspace root when present, then STAGEHAND_* environment
// variables. Missing config files are ignored.
func Load(ctx context.Context, root string) (Config, error) {
	cfg := Default()

	path := filepath.Join(root, ".stagehand.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper("STAGEHAND_", envconfig.OsLookuper()),
	}); err != nil {
		return cfg, fmt.Errorf("process environment: %w", err)
	}

	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	if len(override.Pipelines) > 0 {
		out.Pipelines = append([]string{}, override.Pipelines...)
	}
	if override.Branch != "" {
		out.Branch = override.Branch
	}
	if override.Workspace != "" {
		out.Workspace = override.Workspace
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.Verbose {
		out.Verbose = true
	}
	if override.TailLines > 0 {
		out.TailLines = override.TailLines
	}
	if override.HistoryPath != "" {
		out.HistoryPath = override.HistoryPath
	}
	if override.Listen != "" {
		out.Listen = override.Listen
	}

	return out
}

// ApplyFlags mutates cfg with values from CLI flags when they were set
// explicitly.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if len(flags.Pipelines.Values) > 0 {
		cfg.Pipelines = append([]string{}, flags.Pipelines.Values...)
	}
	if flags.Branch.Set {
		cfg.Branch = flags.Branch.Value
	}
	if flags.Workspace.Set {
		cfg.Workspace = flags.Workspace.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.TailLines.Set {
		cfg.TailLines = flags.TailLines.Value
	}
	if flags.HistoryPath.Set {
		cfg.HistoryPath = flags.HistoryPath.Value
	}
	if flags.Listen.Set {
		cfg.Listen = flags.Listen.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag
// was set explicitly.
type FlagValues struct {
	Pipelines   SliceFlag
	Branch      StringFlag
	Workspace   StringFlag
	Format      StringFlag
	Verbose     BoolFlag
	TailLines   IntFlag
	HistoryPath StringFlag
	Listen      StringFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a repeatable flag's collected values.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}
