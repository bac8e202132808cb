package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

// runStage evaluates the guard and, when it holds, executes the stage's
// steps or parallel branches.
func (e *Engine) runStage(ctx context.Context, stage pipeline.Stage, rc *runContext) report.StageResult {
	res := report.StageResult{
		Name:      stage.Name,
		StartedAt: e.opts.Now(),
	}
	finish := func(status report.Status) report.StageResult {
		res.Status = status
		res.FinishedAt = e.opts.Now()
		res.Duration = res.FinishedAt.Sub(res.StartedAt)
		res.DurationMS = res.Duration.Milliseconds()
		return res
	}

	if stage.When != "" {
		guard, err := pipeline.ParseGuard(stage.When)
		if err != nil {
			// Documents are validated before execution; a bad guard here
			// means the caller bypassed Validate.
			e.opts.Logger.Error("invalid guard", "stage", stage.Name, "err", err)
			return finish(report.StatusFailed)
		}
		if !guard.Eval(rc.meta.Branch, rc.env) {
			e.opts.Logger.Info("stage skipped", "stage", stage.Name, "when", stage.When)
			return finish(report.StatusSkipped)
		}
	}

	e.opts.Logger.Info("stage started", "stage", stage.Name)

	var ok bool
	if len(stage.Parallel) > 0 {
		res.Steps, ok = e.runBranches(ctx, stage.Parallel, rc)
	} else {
		res.Steps, ok = e.execSteps(ctx, stage.Steps, rc, false)
	}

	if !ok {
		e.opts.Logger.Error("stage failed", "stage", stage.Name)
		return finish(report.StatusFailed)
	}
	e.opts.Logger.Info("stage succeeded", "stage", stage.Name)
	return finish(report.StatusSucceeded)
}

// runBranches executes every branch concurrently. The stage completes
// only once all branches complete; a branch failure fails the stage but
// never cancels its siblings.
func (e *Engine) runBranches(ctx context.Context, branches []pipeline.Branch, rc *runContext) ([]report.StepResult, bool) {
	type branchOutcome struct {
		results []report.StepResult
		ok      bool
	}
	outcomes := make([]branchOutcome, len(branches))

	var g errgroup.Group
	for i, branch := range branches {
		i, branch := i, branch
		g.Go(func() error {
			// Each branch gets its own context copy so dir steps in one
			// branch cannot move the working directory of another.
			branchRC := *rc
			results, ok := e.execSteps(ctx, branch.Steps, &branchRC, false)
			for j := range results {
				results[j].Label = branch.Name + "/" + results[j].Label
			}
			outcomes[i] = branchOutcome{results: results, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	var flat []report.StepResult
	ok := true
	for _, outcome := range outcomes {
		flat = append(flat, outcome.results...)
		ok = ok && outcome.ok
	}
	return flat, ok
}
