package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/stagehand-ci/stagehand/internal/envexp"
	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

// execSteps runs steps in declared order. With bestEffort false the
// first failure aborts the remainder; hooks pass bestEffort true so a
// failing hook step never stops its siblings. The returned bool is
// false when any step failed.
func (e *Engine) execSteps(ctx context.Context, steps []pipeline.Step, rc *runContext, bestEffort bool) ([]report.StepResult, bool) {
	results := make([]report.StepResult, 0, len(steps))
	ok := true
	for _, step := range steps {
		stepResults, stepOK := e.execStep(ctx, step, rc)
		results = append(results, stepResults...)
		if !stepOK {
			ok = false
			if !bestEffort {
				break
			}
		}
	}
	return results, ok
}

func (e *Engine) execStep(ctx context.Context, step pipeline.Step, rc *runContext) ([]report.StepResult, bool) {
	switch step.Type {
	case pipeline.StepLog:
		message := envexp.Expand(step.Message, rc.env, e.opts.LookupEnv)
		e.opts.Logger.Info(message, "pipeline", rc.doc.Name)
		res := report.StepResult{
			Label:  step.Label(),
			Status: report.StatusSucceeded,
			Stdout: message,
		}
		return []report.StepResult{res}, true

	case pipeline.StepDir:
		return e.execDir(ctx, step, rc)

	default:
		res := e.runShell(ctx, step, rc)
		return []report.StepResult{res}, res.Status == report.StatusSucceeded
	}
}

// execDir runs the nested steps with the working directory pushed to the
// given subdirectory. The previous directory is restored on every exit
// path, including nested step failure.
func (e *Engine) execDir(ctx context.Context, step pipeline.Step, rc *runContext) (results []report.StepResult, ok bool) {
	prev := rc.workdir
	defer func() { rc.workdir = prev }()

	dir := filepath.Join(prev, step.Path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		res := report.StepResult{
			Label:    step.Label(),
			Status:   report.StatusFailed,
			ExitCode: 127,
			Stderr:   fmt.Sprintf("directory %q not found", dir),
		}
		return []report.StepResult{res}, false
	}
	rc.workdir = dir

	// Nested steps always short-circuit on first failure, even inside
	// best-effort hook sets.
	results, ok = e.execSteps(ctx, step.Steps, rc, false)
	for i := range results {
		results[i].Label = step.Path + "/" + results[i].Label
	}
	return results, ok
}

func (e *Engine) runShell(ctx context.Context, step pipeline.Step, rc *runContext) report.StepResult {
	res := report.StepResult{
		Label:  step.Label(),
		Script: step.Script,
	}

	script := envexp.Expand(step.Script, rc.env, e.opts.LookupEnv)
	start := e.opts.Now()

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return e.spawn(ctx, script, rc, &res)
		},
		retry.Attempts(uint(step.Retries)+1),
		retry.Delay(retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)

	res.Attempts = attempts
	res.Duration = e.opts.Now().Sub(start)
	res.DurationMS = res.Duration.Milliseconds()

	if err != nil {
		res.Status = report.StatusFailed
		res.Stdout = tailLines(res.Stdout, e.opts.TailLines)
		res.Stderr = tailLines(res.Stderr, e.opts.TailLines)
		return res
	}
	res.Status = report.StatusSucceeded
	return res
}

const retryDelay = 200 * time.Millisecond

func (e *Engine) spawn(ctx context.Context, script string, rc *runContext, res *report.StepResult) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = rc.workdir
	cmd.Env = mergeEnv(e.opts.Env, rc.env)

	var stdoutBuf, stderrBuf strings.Builder
	if e.opts.Verbose {
		cmd.Stdout = io.MultiWriter(e.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(e.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()
	res.ExitCode = exitCode(err)
	return err
}

func mergeEnv(base []string, overlay map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlay))
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range overlay {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
