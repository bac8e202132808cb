package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("stages: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPipelinesDiscoversConventionalPaths(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "stagehand.yml"))
	touch(t, filepath.Join(root, ".stagehand", "deploy.yaml"))
	touch(t, filepath.Join(root, ".stagehand", "checks.json"))
	touch(t, filepath.Join(root, "unrelated.yml"))

	got, err := Pipelines(root, nil)
	if err != nil {
		t.Fatalf("Pipelines: %v", err)
	}
	want := []string{
		filepath.Join(".stagehand", "checks.json"),
		filepath.Join(".stagehand", "deploy.yaml"),
		"stagehand.yml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pipelines = %v, want %v", got, want)
	}
}

func TestPipelinesEmptyRoot(t *testing.T) {
	_, err := Pipelines(t.TempDir(), nil)
	if !errors.Is(err, ErrNoPipelines) {
		t.Fatalf("err = %v, want ErrNoPipelines", err)
	}
}

func TestPipelinesExplicitOrderPreserved(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.yml"))
	touch(t, filepath.Join(root, "a.yml"))

	got, err := Pipelines(root, []string{"b.yml", "a.yml", "b.yml"})
	if err != nil {
		t.Fatalf("Pipelines: %v", err)
	}
	want := []string{"b.yml", "a.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pipelines = %v, want %v (duplicates dropped, order kept)", got, want)
	}
}

func TestPipelinesExplicitMissing(t *testing.T) {
	_, err := Pipelines(t.TempDir(), []string{"nope.yml"})
	if err == nil {
		t.Fatal("expected an error for a missing explicit path")
	}
}

func TestPipelinesExplicitDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Pipelines(root, []string{"sub"})
	if err == nil {
		t.Fatal("expected an error for a directory path")
	}
}

func TestPipelinesExplicitAbsolutePath(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "ship.yml")
	touch(t, abs)

	got, err := Pipelines(root, []string{abs})
	if err != nil {
		t.Fatalf("Pipelines: %v", err)
	}
	if len(got) != 1 || got[0] != "ship.yml" {
		t.Fatalf("Pipelines = %v, want [ship.yml]", got)
	}
}
