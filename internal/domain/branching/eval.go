package branching

import (
	"fmt"
	"strconv"
	"strings"
)

// Env carries the evaluation context for one record/event/instance: the
// current event and the observed values of every sibling field.
type Env struct {
	EventID   int64
	EventName string
	// Siblings maps field name to its observed raw value. Fields with no
	// observed value must be absent from the map.
	Siblings map[string]string
}

// Keep decides whether a field's absence should still count as missing.
// A false return means the branching logic explains the absence and the
// field must be dropped from missing-candidates.
//
// Rules are applied in order, first match wins:
//  1. no expression: keep
//  2. conjunctive expression: drop (conservatively unevaluable)
//  3. per condition: unevaluable or unsatisfied comparisons drop
//  4. otherwise keep
func Keep(e *Expr, env Env) bool {
	if e == nil {
		return true
	}
	if e.Conjunctive {
		return false
	}

	for _, c := range e.Conds {
		switch c.Kind {
		case ComputedRef:
			return false
		case EventRef:
			if !eventSatisfied(c, env) {
				return false
			}
		case CompareField:
			if !fieldSatisfied(c, env) {
				return false
			}
		}
	}
	return true
}

func eventSatisfied(c Cond, env Env) bool {
	current := env.EventName
	if c.Field == "event-number" {
		current = fmt.Sprintf("%d", env.EventID)
	}
	switch c.Op {
	case OpEq, OpNone:
		return c.Value == current
	case OpNe:
		return c.Value != current
	}
	return false
}

func fieldSatisfied(c Cond, env Env) bool {
	observed, ok := env.Siblings[c.Field]
	if !ok || strings.TrimSpace(observed) == "" {
		// Cannot evaluate against an absent sibling value.
		return false
	}
	observed = unquote(observed)

	switch c.Op {
	case OpNone:
		// Bare reference: evaluable only when the sibling holds a
		// usable numeric value.
		_, err := strconv.ParseFloat(observed, 64)
		return err == nil
	case OpEq:
		return valuesEqual(observed, c.Value)
	case OpNe:
		return !valuesEqual(observed, c.Value)
	case OpGt, OpGe, OpLt, OpLe:
		lhs, err1 := strconv.ParseFloat(observed, 64)
		rhs, err2 := strconv.ParseFloat(c.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		switch c.Op {
		case OpGt:
			return lhs > rhs
		case OpGe:
			return lhs >= rhs
		case OpLt:
			return lhs < rhs
		default:
			return lhs <= rhs
		}
	}
	return true
}

// valuesEqual compares numerically when both sides parse as numbers, so
// "2" matches "2.0", and falls back to string equality otherwise.
func valuesEqual(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return a == b
}

// NeverMissing reports fields that can never legitimately be flagged as
// missing: form-completion markers and comment/annotation fields.
func NeverMissing(fieldName, formName string) bool {
	if fieldName == formName+"_complete" {
		return true
	}
	return strings.Contains(fieldName, "comment") || strings.Contains(fieldName, "note")
}

// HiddenByAnnotation reports whether a field's visibility annotation marks it
// calculated, read-only, or conditionally hidden for the current event.
func HiddenByAnnotation(annotation, fieldName, eventName string) bool {
	if annotation == "" {
		return false
	}
	if annotation == "@HIDDEN" {
		return true
	}
	patterns := []string{
		fmt.Sprintf("@IF([event-name]='%s', @HIDDEN, '')", eventName),
		fmt.Sprintf("@IF([%s]='', @HIDDEN, '')", fieldName),
		"', '', @HIDDEN)",
		"@CALCTEXT",
		"@CALCDATE",
		"@READONLY",
	}
	for _, p := range patterns {
		if strings.Contains(annotation, p) {
			return true
		}
	}
	return false
}
