package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stagehand",
		Short:         "Stagehand executes declarative multi-stage pipelines",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.StringArrayP("pipeline", "p", nil, "pipeline document to include (repeatable)")
	persistent.String("branch", "", "branch name injected into run metadata")
	persistent.String("workspace", "", "workspace root for step execution (default: cwd)")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.BoolP("verbose", "v", false, "stream step output in real time")
	persistent.Int("tail", 0, "lines of output kept for failed steps")
	persistent.String("history", "", "path of the run history database")
	persistent.String("listen", "", "listen address for serve mode")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
