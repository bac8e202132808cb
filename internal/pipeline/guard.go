package pipeline

import (
	"fmt"
	"strings"
)

// Guard is a parsed `when` expression. Supported forms:
//
//	branch == "main"
//	branch != "main"
//	env.DEPLOY_TARGET == "staging"
//	env.SKIP_TESTS != "1"
//
// Values may be double-quoted or bare. Evaluation is a pure predicate
// over the run context; guards never execute anything.
type Guard struct {
	subject string // "branch" or an environment variable name
	fromEnv bool
	negate  bool
	value   string
}

// ParseGuard parses a `when` expression.
func ParseGuard(expr string) (*Guard, error) {
	var op string
	switch {
	case strings.Contains(expr, "!="):
		op = "!="
	case strings.Contains(expr, "=="):
		op = "=="
	default:
		return nil, fmt.Errorf("invalid guard %q: expected == or !=", expr)
	}

	parts := strings.SplitN(expr, op, 2)
	subject := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	value = strings.Trim(value, `"'`)

	g := &Guard{negate: op == "!=", value: value}
	switch {
	case subject == "branch":
		g.subject = "branch"
	case strings.HasPrefix(subject, "env."):
		name := strings.TrimPrefix(subject, "env.")
		if name == "" {
			return nil, fmt.Errorf("invalid guard %q: empty variable name", expr)
		}
		g.subject = name
		g.fromEnv = true
	default:
		return nil, fmt.Errorf("invalid guard %q: unknown subject %q", expr, subject)
	}
	return g, nil
}

// Eval applies the guard to the run's branch and resolved environment.
func (g *Guard) Eval(branch string, env map[string]string) bool {
	actual := branch
	if g.fromEnv {
		actual = env[g.subject]
	}
	if g.negate {
		return actual != g.value
	}
	return actual == g.value
}
