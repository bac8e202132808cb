package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check pipeline documents without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			docs, err := loadPipelines(root, cfg)
			if err != nil {
				return err
			}

			for _, doc := range docs {
				stages := len(doc.Stages)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d stages)\n", doc.Name, stages)
			}
			return nil
		},
	}
}
