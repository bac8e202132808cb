package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StepType discriminates the step variants of a document.
type StepType string

const (
	// StepShell runs a script through the shell.
	StepShell StepType = "shell"
	// StepLog records an informational message without spawning anything.
	StepLog StepType = "log"
	// StepDir scopes its nested steps to a subdirectory of the workspace.
	StepDir StepType = "dir"
)

// Document is the static definition of a pipeline. It is immutable input:
// the engine never mutates it and a single Document may back many runs.
type Document struct {
	Name        string  `json:"name" yaml:"name"`
	Environment EnvMap  `json:"environment,omitempty" yaml:"environment"`
	Options     Options `json:"options,omitempty" yaml:"options"`
	Stages      []Stage `json:"stages" yaml:"stages"`
	Post        Hooks   `json:"post,omitempty" yaml:"post"`
}

// Options tune engine behaviour for runs of this document.
type Options struct {
	// TimeoutSeconds bounds the whole run. Zero disables the timeout.
	TimeoutSeconds int `json:"timeout,omitempty" yaml:"timeout"`
	// Retain caps how many archived runs the history store keeps for this
	// pipeline. Zero keeps everything.
	Retain int `json:"retain,omitempty" yaml:"retain"`
	// Serialized permits at most one concurrent run per pipeline name.
	Serialized bool `json:"serialized,omitempty" yaml:"serialized"`
}

// Stage is a named, ordered group of steps, optionally gated by a guard.
// Steps and Parallel are mutually exclusive; a parallel stage completes
// once every branch completes and fails if any branch fails.
type Stage struct {
	Name     string   `json:"name" yaml:"name"`
	When     string   `json:"when,omitempty" yaml:"when"`
	Steps    []Step   `json:"steps,omitempty" yaml:"steps"`
	Parallel []Branch `json:"parallel,omitempty" yaml:"parallel"`
}

// Branch is one arm of a parallel stage.
type Branch struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Hooks are the lifecycle step sets run after the stage sequence.
type Hooks struct {
	Always  []Step `json:"always,omitempty" yaml:"always"`
	Success []Step `json:"success,omitempty" yaml:"success"`
	Failure []Step `json:"failure,omitempty" yaml:"failure"`
}

// Empty reports whether no hook steps are defined at all.
func (h Hooks) Empty() bool {
	return len(h.Always) == 0 && len(h.Success) == 0 && len(h.Failure) == 0
}

// Step is the tagged union of step variants. Exactly one payload is
// meaningful per Type: Script for shell, Message for log, Path and Steps
// for dir.
type Step struct {
	Type    StepType `json:"type"`
	Name    string   `json:"name,omitempty"`
	Script  string   `json:"script,omitempty"`
	Retries int      `json:"retries,omitempty"`
	Message string   `json:"message,omitempty"`
	Path    string   `json:"path,omitempty"`
	Steps   []Step   `json:"steps,omitempty"`
}

// Label returns a human readable identifier for the step.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Type {
	case StepShell:
		return s.Script
	case StepLog:
		return s.Message
	case StepDir:
		return "dir " + s.Path
	}
	return string(s.Type)
}

type stepAlias struct {
	Type    StepType `json:"type" yaml:"type"`
	Name    string   `json:"name" yaml:"name"`
	Script  string   `json:"script" yaml:"script"`
	Retries int      `json:"retries" yaml:"retries"`
	Message string   `json:"message" yaml:"message"`
	Path    string   `json:"path" yaml:"path"`
	Steps   []Step   `json:"steps" yaml:"steps"`
}

func (s *Step) fromAlias(a stepAlias) error {
	if a.Type == "" {
		// Infer the variant from the payload so documents can omit the
		// discriminator for the common cases.
		switch {
		case a.Script != "":
			a.Type = StepShell
		case a.Message != "":
			a.Type = StepLog
		case a.Path != "":
			a.Type = StepDir
		default:
			return fmt.Errorf("step %q: missing type", a.Name)
		}
	}
	switch a.Type {
	case StepShell, StepLog, StepDir:
	default:
		return fmt.Errorf("step %q: unknown type %q", a.Name, a.Type)
	}
	*s = Step{
		Type:    a.Type,
		Name:    a.Name,
		Script:  a.Script,
		Retries: a.Retries,
		Message: a.Message,
		Path:    a.Path,
		Steps:   a.Steps,
	}
	return nil
}

// UnmarshalYAML accepts either a bare string (shorthand for a shell step)
// or the full mapping form.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var script string
		if err := node.Decode(&script); err != nil {
			return err
		}
		*s = Step{Type: StepShell, Script: script}
		return nil
	}
	var a stepAlias
	if err := node.Decode(&a); err != nil {
		return err
	}
	return s.fromAlias(a)
}

// UnmarshalJSON mirrors the YAML behaviour for JSON documents.
func (s *Step) UnmarshalJSON(data []byte) error {
	var script string
	if err := json.Unmarshal(data, &script); err == nil {
		*s = Step{Type: StepShell, Script: script}
		return nil
	}
	var a stepAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	return s.fromAlias(a)
}

// EnvEntry is a single name/template pair of the environment block.
type EnvEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EnvMap preserves the declaration order of the environment block so
// later entries can reference earlier ones during resolution.
type EnvMap []EnvEntry

// Lookup returns the template for name, if declared.
func (m EnvMap) Lookup(name string) (string, bool) {
	for _, e := range m {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// UnmarshalYAML decodes a YAML mapping while keeping key order.
func (m *EnvMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("environment: expected a mapping, got %s", node.Tag)
	}
	entries := make(EnvMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, value string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("environment %q: %w", key, err)
		}
		entries = append(entries, EnvEntry{Name: key, Value: value})
	}
	*m = entries
	return nil
}

// UnmarshalJSON walks the raw object token by token; encoding/json map
// decoding would lose declaration order.
func (m *EnvMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("environment: expected an object")
	}
	var entries EnvMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("environment: non-string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("environment %q: %w", key, err)
		}
		entries = append(entries, EnvEntry{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = entries
	return nil
}

// MarshalJSON renders the environment back as an object, in order.
func (m EnvMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// MarshalYAML renders the environment as an ordered mapping node.
func (m EnvMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Value},
		)
	}
	return node, nil
}
