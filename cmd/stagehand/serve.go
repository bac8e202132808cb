package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-ci/stagehand/internal/engine"
	"github.com/stagehand-ci/stagehand/internal/history"
	"github.com/stagehand-ci/stagehand/internal/log"
	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve registered pipelines over HTTP",
		RunE:  serveExecute,
	}
}

func serveExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	loaded, err := loadPipelines(root, cfg)
	if err != nil {
		return err
	}
	docs := make(map[string]*pipeline.Document, len(loaded))
	for _, doc := range loaded {
		if _, dup := docs[doc.Name]; dup {
			return fmt.Errorf("duplicate pipeline name %q", doc.Name)
		}
		docs[doc.Name] = doc
	}

	store, err := history.Open(filepath.Join(root, cfg.HistoryPath))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	logger := log.New("stagehand")
	eng := engine.New(engine.Options{
		Verbose:   cfg.Verbose,
		TailLines: cfg.TailLines,
		Logger:    logger,
	})

	srv := server.New(eng, store, docs, root, logger)
	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "pipelines", len(docs))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
