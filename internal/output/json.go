package output

import (
	"encoding/json"
	"io"

	"github.com/stagehand-ci/stagehand/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures the JSON output schema for a single run.
type Report struct {
	Record  *report.RunRecord `json:"record"`
	Summary report.Summary    `json:"summary"`
}

// Render encodes a run record as indented JSON.
func (j *JSONRenderer) Render(rec *report.RunRecord) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{Record: rec, Summary: report.Summarize(rec)})
}

// RenderHistory encodes archived run records.
func (j *JSONRenderer) RenderHistory(recs []report.RunRecord) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}
