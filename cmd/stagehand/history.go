package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stagehand-ci/stagehand/internal/config"
	"github.com/stagehand-ci/stagehand/internal/history"
	"github.com/stagehand-ci/stagehand/internal/output"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE:  historyList,
	}
	list.Flags().String("of", "", "only runs of this pipeline")
	list.Flags().Int("limit", 20, "maximum number of runs shown")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one archived run in full",
		Args:  cobra.ExactArgs(1),
		RunE:  historyShow,
	}

	cmd.AddCommand(list)
	cmd.AddCommand(show)
	return cmd
}

func openStore(cmd *cobra.Command) (*history.Store, config.Config, error) {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	store, err := history.Open(filepath.Join(root, cfg.HistoryPath))
	if err != nil {
		return nil, cfg, fmt.Errorf("open history store: %w", err)
	}
	return store, cfg, nil
}

func historyList(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	name, _ := cmd.Flags().GetString("of")
	limit, _ := cmd.Flags().GetInt("limit")

	recs, err := store.List(name, limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No archived runs")
		return nil
	}

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		return output.NewPretty(cmd.OutOrStdout()).RenderHistory(recs)
	case config.FormatJSON:
		return output.NewJSON(cmd.OutOrStdout()).RenderHistory(recs)
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

func historyShow(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}
	return renderRecord(cmd, cfg, rec)
}
