package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoPipelines indicates that no pipeline documents were found.
var ErrNoPipelines = errors.New("no pipelines discovered")

// Pipelines returns pipeline document paths. If explicit paths are
// provided they are validated and returned in the order given.
// Otherwise stagehand.yml at the root and everything under .stagehand/
// are collected, sorted lexicographically.
func Pipelines(root string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return resolveExplicit(root, explicit)
	}

	matches := make(map[string]struct{})

	addMatches := func(pattern string) error {
		found, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range found {
			matches[m] = struct{}{}
		}
		return nil
	}

	for _, pattern := range []string{
		filepath.Join(root, "stagehand.yml"),
		filepath.Join(root, "stagehand.yaml"),
		filepath.Join(root, ".stagehand", "*.yml"),
		filepath.Join(root, ".stagehand", "*.yaml"),
		filepath.Join(root, ".stagehand", "*.json"),
	} {
		if err := addMatches(pattern); err != nil {
			return nil, err
		}
	}

	if len(matches) == 0 {
		return nil, ErrNoPipelines
	}

	paths := make([]string, 0, len(matches))
	for p := range matches {
		paths = append(paths, mustRelOrClean(root, p))
	}
	sort.Strings(paths)

	return paths, nil
}

func resolveExplicit(root string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})
	resolved := make([]string, 0, len(explicit))
	for _, input := range explicit {
		cleaned := input
		if !filepath.IsAbs(cleaned) {
			cleaned = filepath.Join(root, cleaned)
		}
		info, err := os.Stat(cleaned)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("pipeline %q not found", input)
			}
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("pipeline %q is a directory", input)
		}
		rel := mustRelOrClean(root, cleaned)
		if _, ok := seen[rel]; ok {
			continue
		}
		seen[rel] = struct{}{}
		resolved = append(resolved, rel)
	}
	if len(resolved) == 0 {
		return nil, ErrNoPipelines
	}
	return resolved, nil
}

func mustRelOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return rel
}
