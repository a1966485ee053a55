// Package branching interprets per-field conditional-visibility expressions.
// An expression decides whether a field is expected to be filled given its
// sibling values; when the condition fails, the field's absence is not
// treated as missing data.
package branching

import (
	"regexp"
	"strings"
)

// Op is a comparison operator appearing in an expression.
type Op int

const (
	// OpNone marks a bare field reference with no comparison.
	OpNone Op = iota
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
)

// Kind classifies one parsed condition.
type Kind int

const (
	// CompareField compares a sibling field's value against a literal.
	CompareField Kind = iota
	// EventRef compares the current event name or number.
	EventRef
	// ComputedRef references a derived value such as [field(arg)]; these
	// cannot be evaluated against observed siblings.
	ComputedRef
)

// Cond is one parsed condition.
type Cond struct {
	Kind  Kind
	Field string
	Op    Op
	Value string
}

// Expr is a parsed branching-logic expression.
type Expr struct {
	Raw string
	// Conjunctive is set when the expression joins conditions with a
	// logical AND. Multi-condition conjunctions are treated as
	// unevaluable and always drop the field; replacing this with a real
	// multi-condition evaluator is a deliberate future change.
	Conjunctive bool
	Conds       []Cond
}

// condPattern matches one [reference] with an optional comparison. The
// operator may or may not be preceded by a space; values may be quoted or
// bare numerics.
var condPattern = regexp.MustCompile(`\[([^\]\[]+)\]\s*(!=|>=|<=|=|>|<)?\s*('[^']*'|"[^"]*"|-?\d+(?:\.\d+)?)?`)

// Parse builds a condition tree from a raw expression. An empty expression
// parses to nil, meaning the field is unconditionally expected.
func Parse(raw string) *Expr {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	expr := &Expr{Raw: raw}
	if strings.Contains(raw, " AND ") || strings.Contains(raw, " and ") {
		expr.Conjunctive = true
	}

	for _, m := range condPattern.FindAllStringSubmatch(raw, -1) {
		ref := strings.TrimSpace(m[1])
		cond := Cond{Field: ref, Op: parseOp(m[2]), Value: unquote(m[3])}
		switch {
		case strings.Contains(ref, "("):
			cond.Kind = ComputedRef
		case ref == "event-name" || ref == "event-number":
			cond.Kind = EventRef
		default:
			cond.Kind = CompareField
		}
		expr.Conds = append(expr.Conds, cond)
	}
	return expr
}

// References returns the sibling fields the expression names. Event
// references resolve against the run context rather than a sibling, and
// computed references are never evaluable, so both are excluded; everything
// returned must be resolvable in the expected-field set.
func (e *Expr) References() []string {
	if e == nil {
		return nil
	}
	var refs []string
	for _, c := range e.Conds {
		if c.Kind != CompareField {
			continue
		}
		refs = append(refs, c.Field)
	}
	return refs
}

func parseOp(s string) Op {
	switch s {
	case "=":
		return OpEq
	case "!=":
		return OpNe
	case ">":
		return OpGt
	case ">=":
		return OpGe
	case "<":
		return OpLt
	case "<=":
		return OpLe
	}
	return OpNone
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
