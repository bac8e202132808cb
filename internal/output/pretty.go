package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

var (
	styleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleSkipped   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleDim       = lipgloss.NewStyle().Faint(true)
)

// PrettyRenderer renders execution results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

func statusGlyph(s report.Status) string {
	switch s {
	case report.StatusSucceeded:
		return styleSucceeded.Render("✓")
	case report.StatusFailed:
		return styleFailed.Render("✗")
	case report.StatusSkipped:
		return styleSkipped.Render("-")
	default:
		return "•"
	}
}

func statusWord(s report.Status) string {
	switch s {
	case report.StatusSucceeded:
		return styleSucceeded.Render(string(s))
	case report.StatusFailed:
		return styleFailed.Render(string(s))
	case report.StatusSkipped:
		return styleSkipped.Render(string(s))
	default:
		return string(s)
	}
}

// Render shows stage and step outcomes for a run, with captured output
// for failed steps, hook outcomes, and a summary line.
func (p *PrettyRenderer) Render(rec *report.RunRecord) error {
	header := fmt.Sprintf("Pipeline %s #%d", rec.Pipeline, rec.BuildNumber)
	if rec.Branch != "" {
		header += " (" + rec.Branch + ")"
	}
	if _, err := fmt.Fprintln(p.out, styleHeader.Render(header)); err != nil {
		return err
	}

	for _, stage := range rec.Stages {
		fmt.Fprintf(p.out, "%s Stage %s %s\n",
			statusGlyph(stage.Status), stage.Name, styleDim.Render(formatDuration(stage.Duration)))
		for _, step := range stage.Steps {
			fmt.Fprintf(p.out, "    %s %s %s\n",
				statusGlyph(step.Status), step.Label, styleDim.Render(formatDuration(step.Duration)))
			if step.Status == report.StatusFailed {
				p.writeCaptured(step)
			}
		}
	}

	for _, hook := range rec.Hooks {
		fmt.Fprintf(p.out, "%s %s\n", statusGlyph(hook.Status), hook.Label)
		if hook.Status == report.StatusFailed {
			p.writeCaptured(hook)
		}
	}

	summary := report.Summarize(rec)
	line := fmt.Sprintf("%s in %s — %d succeeded, %d failed, %d skipped",
		statusWord(rec.Status), formatDuration(rec.Duration),
		summary.Succeeded, summary.Failed, summary.Skipped)
	if rec.FailureKind == report.FailureTimeout {
		line += styleFailed.Render(" (timed out)")
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func (p *PrettyRenderer) writeCaptured(step report.StepResult) {
	if step.Stdout != "" {
		fmt.Fprintf(p.out, "      stdout:\n%s\n", indent(step.Stdout))
	}
	if step.Stderr != "" {
		fmt.Fprintf(p.out, "      stderr:\n%s\n", indent(step.Stderr))
	}
	if step.ExitCode != 0 {
		fmt.Fprintf(p.out, "      exit code %d\n", step.ExitCode)
	}
}

// RenderList shows the stages and steps a document declares.
func (p *PrettyRenderer) RenderList(doc *pipeline.Document) error {
	if _, err := fmt.Fprintln(p.out, styleHeader.Render("Pipeline "+doc.Name)); err != nil {
		return err
	}
	for _, stage := range doc.Stages {
		label := stage.Name
		if stage.When != "" {
			label += styleDim.Render(" [when " + stage.When + "]")
		}
		fmt.Fprintf(p.out, "  Stage %s\n", label)
		for _, branch := range stage.Parallel {
			fmt.Fprintf(p.out, "    Branch %s\n", branch.Name)
			p.listSteps(branch.Steps, "      ")
		}
		p.listSteps(stage.Steps, "    ")
	}
	return nil
}

func (p *PrettyRenderer) listSteps(steps []pipeline.Step, prefix string) {
	for _, step := range steps {
		fmt.Fprintf(p.out, "%s• %s\n", prefix, step.Label())
		if step.Type == pipeline.StepDir {
			p.listSteps(step.Steps, prefix+"  ")
		}
	}
}

// RenderHistory lists archived runs, newest first.
func (p *PrettyRenderer) RenderHistory(recs []report.RunRecord) error {
	for _, rec := range recs {
		fmt.Fprintf(p.out, "%s %s #%-4d %-9s %s %s\n",
			statusGlyph(rec.Status), rec.Pipeline, rec.BuildNumber, rec.Status,
			styleDim.Render(humanize.Time(rec.StartedAt)),
			styleDim.Render(rec.RunID))
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "        " + line
	}
	return strings.Join(lines, "\n")
}
