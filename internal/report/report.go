package report

import "time"

// Status describes the outcome of a run, stage, or step.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// FailureKind distinguishes why a run failed. Empty for successful runs.
type FailureKind string

const (
	// FailureStep marks a run aborted by a step exiting non-zero.
	FailureStep FailureKind = "step"
	// FailureTimeout marks a run that exceeded its configured timeout.
	FailureTimeout FailureKind = "timeout"
	// FailureResolve marks a run aborted before any stage by an
	// unresolvable environment template.
	FailureResolve FailureKind = "resolve"
)

// Metadata carries caller-injected identity for a single run.
type Metadata struct {
	RunID       string    `json:"run_id"`
	BuildNumber int       `json:"build_number"`
	Branch      string    `json:"branch"`
	Workspace   string    `json:"workspace"`
	StartedAt   time.Time `json:"started_at"`
}

// StepResult captures the outcome of a single executed step.
type StepResult struct {
	Label      string        `json:"label"`
	Script     string        `json:"script,omitempty"`
	Status     Status        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// StageResult captures the outcome of one stage. Stages that never ran
// because an earlier stage failed have no StageResult at all.
type StageResult struct {
	Name       string        `json:"name"`
	Status     Status        `json:"status"`
	Steps      []StepResult  `json:"steps,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// RunRecord is the full audit record of one pipeline run.
type RunRecord struct {
	Pipeline    string        `json:"pipeline"`
	RunID       string        `json:"run_id"`
	BuildNumber int           `json:"build_number"`
	Branch      string        `json:"branch,omitempty"`
	Status      Status        `json:"status"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Stages      []StageResult `json:"stages"`
	Hooks       []StepResult  `json:"hooks,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
}

// Summary aggregates per-stage counts for rendering.
type Summary struct {
	TotalStages int `json:"total_stages"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
}

// Summarize tallies stage outcomes from a record.
func Summarize(rec *RunRecord) Summary {
	s := Summary{TotalStages: len(rec.Stages)}
	for _, st := range rec.Stages {
		switch st.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
