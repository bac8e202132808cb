package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stagehand-ci/stagehand/internal/config"
	"github.com/stagehand-ci/stagehand/internal/discovery"
	"github.com/stagehand-ci/stagehand/internal/engine"
	"github.com/stagehand-ci/stagehand/internal/history"
	"github.com/stagehand-ci/stagehand/internal/log"
	"github.com/stagehand-ci/stagehand/internal/output"
	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute pipeline documents",
		RunE:  runExecute,
	}
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	docs, err := loadPipelines(root, cfg)
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(root, cfg.HistoryPath))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	eng := engine.New(engine.Options{
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
		Verbose:   cfg.Verbose,
		TailLines: cfg.TailLines,
		Logger:    log.New("stagehand"),
	})

	failed := false
	for _, doc := range docs {
		build, err := store.NextBuildNumber(doc.Name)
		if err != nil {
			return fmt.Errorf("allocate build number for %s: %w", doc.Name, err)
		}

		meta := report.Metadata{
			RunID:       uuid.NewString(),
			BuildNumber: build,
			Branch:      cfg.Branch,
			Workspace:   root,
			StartedAt:   time.Now(),
		}

		rec, runErr := eng.Run(cmd.Context(), doc, meta)
		if runErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", runErr)
		}
		if rec.Status == report.StatusFailed {
			failed = true
		}

		if err := store.Save(rec, doc.Options.Retain); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: archive run: %v\n", err)
		}

		if err := renderRecord(cmd, cfg, rec); err != nil {
			return err
		}
	}

	if failed {
		return fmt.Errorf("one or more pipelines failed")
	}
	return nil
}

func renderRecord(cmd *cobra.Command, cfg config.Config, rec *report.RunRecord) error {
	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		return output.NewPretty(cmd.OutOrStdout()).Render(rec)
	case config.FormatJSON:
		return output.NewJSON(cmd.OutOrStdout()).Render(rec)
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

// loadPipelines resolves document paths (explicit or discovered) and
// parses each one.
func loadPipelines(root string, cfg config.Config) ([]*pipeline.Document, error) {
	paths, err := discovery.Pipelines(root, cfg.Pipelines)
	if err != nil {
		if errors.Is(err, discovery.ErrNoPipelines) {
			return nil, fmt.Errorf("no pipelines found; specify --pipeline to provide files")
		}
		return nil, err
	}

	docs := make([]*pipeline.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := pipeline.Load(filepath.Join(root, path))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
