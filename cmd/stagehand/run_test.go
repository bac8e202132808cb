package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePipeline(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %q: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)

	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()
	return buf.String(), err
}

const passingPipeline = `name: demo
stages:
  - name: Build
    steps:
      - echo building
  - name: Test
    steps:
      - echo testing
`

func TestRunCommandSuccess(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", passingPipeline)

	out, err := execute(t, "run", "--workspace", ws)
	if err != nil {
		t.Fatalf("command execute: %v\n%s", err, out)
	}

	for _, want := range []string{"Pipeline demo #1", "Stage Build", "Stage Test", "2 succeeded"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCommandFailure(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", `name: broken
stages:
  - name: Build
    steps:
      - exit 1
`)

	out, err := execute(t, "run", "--workspace", ws)
	if err == nil {
		t.Fatalf("expected a failure, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "one or more pipelines failed") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "exit code 1") {
		t.Fatalf("output missing captured failure:\n%s", out)
	}
}

func TestRunCommandJSONFormat(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", passingPipeline)

	out, err := execute(t, "run", "--workspace", ws, "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"record"`) || !strings.Contains(out, `"summary"`) {
		t.Fatalf("expected JSON report:\n%s", out)
	}
}

func TestRunCommandNoPipelines(t *testing.T) {
	out, err := execute(t, "run", "--workspace", t.TempDir())
	if err == nil {
		t.Fatalf("expected an error, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "no pipelines found") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunCommandExplicitPipeline(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, filepath.Join(ws, "ci"), "deploy.yml", passingPipeline)

	out, err := execute(t, "run",
		"--workspace", ws,
		"--pipeline", filepath.Join("ci", "deploy.yml"))
	if err != nil {
		t.Fatalf("command execute: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pipeline demo") {
		t.Fatalf("output missing pipeline header:\n%s", out)
	}
}

func TestRunCommandBuildNumbersAdvance(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", passingPipeline)

	if out, err := execute(t, "run", "--workspace", ws); err != nil {
		t.Fatalf("first run: %v\n%s", err, out)
	}
	out, err := execute(t, "run", "--workspace", ws)
	if err != nil {
		t.Fatalf("second run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pipeline demo #2") {
		t.Fatalf("expected build #2:\n%s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", passingPipeline)

	out, err := execute(t, "validate", "--workspace", ws)
	if err != nil {
		t.Fatalf("command execute: %v\n%s", err, out)
	}
	if !strings.Contains(out, "demo: ok (2 stages)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestValidateCommandRejectsBadDocument(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", `name: bad
stages:
  - name: Build
    steps: []
`)

	if out, err := execute(t, "validate", "--workspace", ws); err == nil {
		t.Fatalf("expected a validation error, got:\n%s", out)
	}
}

func TestListCommand(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", `name: demo
stages:
  - name: Deploy
    when: branch == "main"
    steps:
      - script: make deploy
`)

	out, err := execute(t, "list", "--workspace", ws)
	if err != nil {
		t.Fatalf("command execute: %v\n%s", err, out)
	}
	for _, want := range []string{"Pipeline demo", "Stage Deploy", "make deploy", `when branch == "main"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryCommands(t *testing.T) {
	ws := t.TempDir()
	writePipeline(t, ws, "stagehand.yml", passingPipeline)

	if out, err := execute(t, "run", "--workspace", ws); err != nil {
		t.Fatalf("seed run: %v\n%s", err, out)
	}

	out, err := execute(t, "history", "list", "--workspace", ws)
	if err != nil {
		t.Fatalf("history list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "demo") || !strings.Contains(out, "succeeded") {
		t.Fatalf("unexpected history output:\n%s", out)
	}

	out, err = execute(t, "history", "list", "--workspace", t.TempDir())
	if err != nil {
		t.Fatalf("history list (empty): %v\n%s", err, out)
	}
	if !strings.Contains(out, "No archived runs") {
		t.Fatalf("unexpected empty-history output:\n%s", out)
	}
}
