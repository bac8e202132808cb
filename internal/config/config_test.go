package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != FormatPretty {
		t.Fatalf("Format = %q, want %q", cfg.Format, FormatPretty)
	}
	if cfg.TailLines != 20 {
		t.Fatalf("TailLines = %d, want 20", cfg.TailLines)
	}
	if cfg.HistoryPath != "stagehand.db" {
		t.Fatalf("HistoryPath = %q", cfg.HistoryPath)
	}
	if cfg.Listen != "127.0.0.1:8632" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
}

func TestLoadConfigFile(t *testing.T) {
	root := t.TempDir()
	contents := `branch: develop
format: json
tail_lines: 5
history: builds.db
`
	if err := os.WriteFile(filepath.Join(root, ".stagehand.yml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Branch != "develop" {
		t.Fatalf("Branch = %q", cfg.Branch)
	}
	if cfg.Format != FormatJSON {
		t.Fatalf("Format = %q", cfg.Format)
	}
	if cfg.TailLines != 5 {
		t.Fatalf("TailLines = %d", cfg.TailLines)
	}
	if cfg.HistoryPath != "builds.db" {
		t.Fatalf("HistoryPath = %q", cfg.HistoryPath)
	}
	// Unset keys keep their defaults.
	if cfg.Listen != "127.0.0.1:8632" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
}

func TestLoadBadConfigFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".stagehand.yml"), []byte("branch: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), root); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".stagehand.yml"), []byte("branch: develop\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STAGEHAND_BRANCH", "release")
	t.Setenv("STAGEHAND_VERBOSE", "true")

	cfg, err := Load(context.Background(), root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Branch != "release" {
		t.Fatalf("Branch = %q, want release", cfg.Branch)
	}
	if !cfg.Verbose {
		t.Fatal("Verbose should come from the environment")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	cfg.Branch = "develop"

	ApplyFlags(&cfg, FlagValues{
		Pipelines: SliceFlag{Values: []string{"a.yml", "b.yml"}},
		Branch:    StringFlag{Value: "main", Set: true},
		Format:    StringFlag{Value: FormatJSON, Set: true},
		TailLines: IntFlag{Value: 50, Set: true},
	})

	if len(cfg.Pipelines) != 2 || cfg.Pipelines[0] != "a.yml" {
		t.Fatalf("Pipelines = %v", cfg.Pipelines)
	}
	if cfg.Branch != "main" {
		t.Fatalf("Branch = %q", cfg.Branch)
	}
	if cfg.Format != FormatJSON {
		t.Fatalf("Format = %q", cfg.Format)
	}
	if cfg.TailLines != 50 {
		t.Fatalf("TailLines = %d", cfg.TailLines)
	}
}

func TestApplyFlagsUnsetLeavesValues(t *testing.T) {
	cfg := Default()
	cfg.Branch = "develop"
	cfg.Verbose = true

	ApplyFlags(&cfg, FlagValues{
		// A false bool that was never set must not clear the value.
		Verbose: BoolFlag{Value: false, Set: false},
	})

	if cfg.Branch != "develop" || !cfg.Verbose {
		t.Fatalf("unset flags changed config: %+v", cfg)
	}
}
