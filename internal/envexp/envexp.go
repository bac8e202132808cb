// Package envexp resolves the environment block of a pipeline document
// into concrete values for one run.
package envexp

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

// Built-in variables injected from run metadata.
const (
	VarRunID       = "RUN_ID"
	VarBuildNumber = "BUILD_NUMBER"
	VarBranch      = "BRANCH"
	VarWorkspace   = "WORKSPACE"
	VarStartTime   = "START_TIME"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// UnresolvedVariableError reports a placeholder with no value from run
// metadata, earlier entries, or the process environment.
type UnresolvedVariableError struct {
	Variable string // the placeholder that could not be resolved
	Entry    string // the environment entry being expanded
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("environment %q: unresolved variable ${%s}", e.Entry, e.Variable)
}

// Builtins derives the metadata-provided variables for a run.
func Builtins(meta report.Metadata) map[string]string {
	return map[string]string{
		VarRunID:       meta.RunID,
		VarBuildNumber: strconv.Itoa(meta.BuildNumber),
		VarBranch:      meta.Branch,
		VarWorkspace:   meta.Workspace,
		VarStartTime:   meta.StartedAt.UTC().Format(time.RFC3339),
	}
}

// Resolve expands the global environment in declaration order. Each
// entry may reference metadata built-ins, entries declared before it,
// and as a fallback the process environment via lookup (os.LookupEnv
// when nil). Resolution is pure: the same inputs always produce the
// same mapping.
func Resolve(global pipeline.EnvMap, meta report.Metadata, lookup func(string) (string, bool)) (map[string]string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	resolved := Builtins(meta)
	for _, entry := range global {
		value, err := expand(entry.Value, resolved, lookup)
		if err != nil {
			var unres *UnresolvedVariableError
			if errors.As(err, &unres) {
				unres.Entry = entry.Name
			}
			return nil, err
		}
		resolved[entry.Name] = value
	}
	return resolved, nil
}

// Expand substitutes known placeholders in a script. Placeholders with
// no value in vars or the process environment are left intact for the
// shell, which also receives vars through the subprocess environment.
func Expand(s string, vars map[string]string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
}

func expand(s string, vars map[string]string, lookup func(string) (string, bool)) (string, error) {
	var missing *UnresolvedVariableError
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := lookup(name); ok {
			return v
		}
		if missing == nil {
			missing = &UnresolvedVariableError{Variable: name}
		}
		return match
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}
