package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagehand-ci/stagehand/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("pipeline") {
		v, err := flags.GetStringArray("pipeline")
		if err != nil {
			return values, fmt.Errorf("parse --pipeline: %w", err)
		}
		values.Pipelines = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("branch") {
		v, err := flags.GetString("branch")
		if err != nil {
			return values, fmt.Errorf("parse --branch: %w", err)
		}
		values.Branch = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("workspace") {
		v, err := flags.GetString("workspace")
		if err != nil {
			return values, fmt.Errorf("parse --workspace: %w", err)
		}
		values.Workspace = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("tail") {
		v, err := flags.GetInt("tail")
		if err != nil {
			return values, fmt.Errorf("parse --tail: %w", err)
		}
		values.TailLines = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("history") {
		v, err := flags.GetString("history")
		if err != nil {
			return values, fmt.Errorf("parse --history: %w", err)
		}
		values.HistoryPath = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("listen") {
		v, err := flags.GetString("listen")
		if err != nil {
			return values, fmt.Errorf("parse --listen: %w", err)
		}
		values.Listen = config.StringFlag{Value: v, Set: true}
	}

	return values, nil
}

// loadConfig resolves the workspace root and the effective configuration
// (defaults, config file, environment, flags, in that order).
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}

	root := flags.Workspace.Value
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return config.Config{}, "", fmt.Errorf("determine workspace: %w", err)
		}
	}

	cfg, err := config.Load(cmd.Context(), root)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	if cfg.Workspace == "" {
		cfg.Workspace = root
	}
	return cfg, cfg.Workspace, nil
}
