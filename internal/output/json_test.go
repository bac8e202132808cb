package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stagehand-ci/stagehand/internal/report"
)

func TestJSONRender(t *testing.T) {
	var buf strings.Builder
	if err := NewJSON(&buf).Render(sampleRun()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var rep Report
	if err := json.Unmarshal([]byte(buf.String()), &rep); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if rep.Record == nil || rep.Record.Pipeline != "web" {
		t.Fatalf("record = %+v", rep.Record)
	}
	if rep.Summary.TotalStages != 2 || rep.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.Record.Status != report.StatusFailed {
		t.Fatalf("status = %s", rep.Record.Status)
	}
}

func TestJSONRenderHistory(t *testing.T) {
	recs := []report.RunRecord{
		{Pipeline: "web", RunID: "run-2", BuildNumber: 2, Status: report.StatusSucceeded},
		{Pipeline: "web", RunID: "run-1", BuildNumber: 1, Status: report.StatusFailed},
	}

	var buf strings.Builder
	if err := NewJSON(&buf).RenderHistory(recs); err != nil {
		t.Fatalf("RenderHistory: %v", err)
	}

	var decoded []report.RunRecord
	if err := json.Unmarshal([]byte(buf.String()), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].RunID != "run-2" {
		t.Fatalf("decoded = %+v", decoded)
	}
}
