package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks the structural invariants of a document: at least one
// stage, unique stage names, well-formed steps and guards.
func Validate(doc *Document) error {
	if len(doc.Stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	seen := make(map[string]struct{}, len(doc.Stages))
	for i, stage := range doc.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d: missing name", i+1)
		}
		if _, dup := seen[stage.Name]; dup {
			return fmt.Errorf("stage %q: duplicate stage name", stage.Name)
		}
		seen[stage.Name] = struct{}{}

		if len(stage.Steps) > 0 && len(stage.Parallel) > 0 {
			return fmt.Errorf("stage %q: steps and parallel are mutually exclusive", stage.Name)
		}
		if len(stage.Steps) == 0 && len(stage.Parallel) == 0 {
			return fmt.Errorf("stage %q: no steps", stage.Name)
		}
		if stage.When != "" {
			if _, err := ParseGuard(stage.When); err != nil {
				return fmt.Errorf("stage %q: %w", stage.Name, err)
			}
		}
		if err := validateSteps(stage.Name, stage.Steps); err != nil {
			return err
		}
		for _, branch := range stage.Parallel {
			if branch.Name == "" {
				return fmt.Errorf("stage %q: parallel branch missing name", stage.Name)
			}
			if len(branch.Steps) == 0 {
				return fmt.Errorf("stage %q: branch %q has no steps", stage.Name, branch.Name)
			}
			if err := validateSteps(stage.Name+"/"+branch.Name, branch.Steps); err != nil {
				return err
			}
		}
	}

	for name, steps := range map[string][]Step{
		"always":  doc.Post.Always,
		"success": doc.Post.Success,
		"failure": doc.Post.Failure,
	} {
		if err := validateSteps("post."+name, steps); err != nil {
			return err
		}
	}

	return nil
}

func validateSteps(scope string, steps []Step) error {
	for i, step := range steps {
		where := fmt.Sprintf("%s step %d", scope, i+1)
		switch step.Type {
		case StepShell:
			if strings.TrimSpace(step.Script) == "" {
				return fmt.Errorf("%s: shell step requires a script", where)
			}
			if step.Retries < 0 {
				return fmt.Errorf("%s: retries must not be negative", where)
			}
		case StepLog:
			if step.Message == "" {
				return fmt.Errorf("%s: log step requires a message", where)
			}
		case StepDir:
			if step.Path == "" {
				return fmt.Errorf("%s: dir step requires a path", where)
			}
			if filepath.IsAbs(step.Path) || strings.Contains(step.Path, "..") {
				return fmt.Errorf("%s: dir path must stay inside the workspace", where)
			}
			if len(step.Steps) == 0 {
				return fmt.Errorf("%s: dir step requires nested steps", where)
			}
			if err := validateSteps(scope+"/"+step.Path, step.Steps); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: unknown step type %q", where, step.Type)
		}
	}
	return nil
}
