// Package engine executes pipeline documents: stages in declared order
// with fail-fast semantics, a pipeline-wide timeout, and lifecycle hooks
// that run on every exit path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stagehand-ci/stagehand/internal/envexp"
	"github.com/stagehand-ci/stagehand/internal/log"
	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

// Options configure how the engine executes runs.
type Options struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Verbose   bool
	TailLines int
	Env       []string
	Now       func() time.Time
	Logger    *slog.Logger
	LookupEnv func(string) (string, bool)
}

// Engine runs pipeline documents. It is safe for concurrent use; all
// per-run state lives in the run context.
type Engine struct {
	opts Options
}

// New creates an engine with the supplied options.
func New(opts Options) *Engine {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New("engine")
	}
	return &Engine{opts: opts}
}

// runContext is the mutable state of one run. It is owned by the engine
// for the duration of the run and never shared across runs.
type runContext struct {
	doc     *pipeline.Document
	meta    report.Metadata
	env     map[string]string
	workdir string
	record  *report.RunRecord
}

// Run executes a document against the given metadata and returns the
// run record. The record is always non-nil; the error is non-nil only
// when the run could not start (environment resolution failure). Step
// and timeout failures are conveyed through the record's status.
func (e *Engine) Run(ctx context.Context, doc *pipeline.Document, meta report.Metadata) (*report.RunRecord, error) {
	if doc.Options.Serialized {
		unlock := lockPipeline(doc.Name)
		defer unlock()
	}

	start := e.opts.Now()
	rec := &report.RunRecord{
		Pipeline:    doc.Name,
		RunID:       meta.RunID,
		BuildNumber: meta.BuildNumber,
		Branch:      meta.Branch,
		Status:      report.StatusRunning,
		StartedAt:   start,
	}
	finalize := func() {
		rec.FinishedAt = e.opts.Now()
		rec.Duration = rec.FinishedAt.Sub(start)
		rec.DurationMS = rec.Duration.Milliseconds()
	}

	env, err := envexp.Resolve(doc.Environment, meta, e.opts.LookupEnv)
	if err != nil {
		// Fatal before any stage: there is no usable environment, so
		// hooks are not attempted either.
		rec.Status = report.StatusFailed
		rec.FailureKind = report.FailureResolve
		rec.Error = err.Error()
		finalize()
		return rec, err
	}

	workdir := meta.Workspace
	if workdir == "" {
		if workdir, err = os.Getwd(); err != nil {
			rec.Status = report.StatusFailed
			rec.Error = err.Error()
			finalize()
			return rec, fmt.Errorf("determine workspace: %w", err)
		}
	}

	rc := &runContext{doc: doc, meta: meta, env: env, workdir: workdir, record: rec}

	runCtx := ctx
	if doc.Options.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(doc.Options.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	e.opts.Logger.Info("run started",
		"pipeline", doc.Name, "run", meta.RunID, "build", meta.BuildNumber, "branch", meta.Branch)

	// Phase 1: the stage sequence, fail-fast.
	for _, stage := range doc.Stages {
		stageRes := e.runStage(runCtx, stage, rc)
		rec.Stages = append(rec.Stages, stageRes)
		if stageRes.Status == report.StatusFailed {
			rec.Status = report.StatusFailed
			rec.FailureKind = report.FailureStep
			rec.Error = fmt.Sprintf("stage %q failed", stage.Name)
			break
		}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		rec.Status = report.StatusFailed
		rec.FailureKind = report.FailureTimeout
		rec.Error = ErrTimedOut.Error()
	}
	if rec.Status == report.StatusRunning {
		rec.Status = report.StatusSucceeded
	}

	// Phase 2: hooks run unconditionally, after the status is frozen.
	// The run's timeout no longer applies to them.
	e.dispatchHooks(context.WithoutCancel(ctx), rc)

	finalize()
	e.opts.Logger.Info("run finished",
		"pipeline", doc.Name, "run", meta.RunID, "status", rec.Status, "duration", rec.Duration)
	return rec, nil
}

// dispatchHooks runs the always set first, then exactly one of the
// success/failure sets. Hook failures are recorded and logged but never
// change the run status or stop sibling hook steps.
func (e *Engine) dispatchHooks(ctx context.Context, rc *runContext) {
	if rc.doc.Post.Empty() {
		return
	}

	run := func(scope string, steps []pipeline.Step) {
		if len(steps) == 0 {
			return
		}
		results, ok := e.execSteps(ctx, steps, rc, true)
		for i := range results {
			results[i].Label = scope + ": " + results[i].Label
		}
		rc.record.Hooks = append(rc.record.Hooks, results...)
		if !ok {
			e.opts.Logger.Warn("hook step failed", "pipeline", rc.doc.Name, "hooks", scope)
		}
	}

	run("always", rc.doc.Post.Always)
	if rc.record.Status == report.StatusSucceeded {
		run("success", rc.doc.Post.Success)
	} else {
		run("failure", rc.doc.Post.Failure)
	}
}

// Per-pipeline serialization for documents that opt in.
var (
	serialMu sync.Mutex
	serial   = make(map[string]*sync.Mutex)
)

func lockPipeline(name string) func() {
	serialMu.Lock()
	m, ok := serial[name]
	if !ok {
		m = &sync.Mutex{}
		serial[name] = m
	}
	serialMu.Unlock()
	m.Lock()
	return m.Unlock
}
