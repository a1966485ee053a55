// Package missing detects partially entered form instances: expected fields
// with no observed value whose absence is not explained by conditional
// visibility.
package missing

import (
	"log/slog"
	"sort"

	"github.com/ganot/dataqc/internal/domain/branching"
	"github.com/ganot/dataqc/internal/domain/study"
)

// Scope identifies the form instance grid being examined.
type Scope struct {
	ProjectID int64
	EventID   int64
	EventName string
	FormName  string
}

// Finding is one confirmed missing field on a partially filled instance.
// MissingFields and PresentFields list the instance's full sibling context
// for audit.
type Finding struct {
	ProjectID     int64
	EventID       int64
	EventName     string
	RecordID      int64
	FormName      string
	FieldName     string
	Instance      int
	MissingFields []string
	PresentFields []string
}

type Detector struct {
	logger *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{logger: logger.With("component", "missing_detector")}
}

// Detect cross-joins the scope's expected fields against observed values for
// every record and repeat instance, prunes candidates whose absence is
// explained by branching logic, and emits one finding per confirmed miss.
// A candidate whose branching logic references a field outside the expected
// set is never confirmed: the condition cannot be resolved on this form.
//
// Instances past the last one a record has touched are not scanned: a wholly
// untouched instance is "not started", not missing. Likewise an instance with
// zero values present yields no findings.
func (d *Detector) Detect(scope Scope, fields []study.ExpectedField, values []study.RecordValue) []Finding {
	expected := expectedFields(scope, fields)
	if len(expected) == 0 {
		return nil
	}
	names := make(map[string]bool, len(expected))
	for _, f := range expected {
		names[f.FieldName] = true
	}
	exprs := make(map[string]*branching.Expr, len(expected))
	unresolvable := make(map[string]bool)
	for _, f := range expected {
		e := branching.Parse(f.BranchingLogic)
		exprs[f.FieldName] = e
		for _, ref := range e.References() {
			if !names[ref] {
				// The condition names a sibling outside the expected set
				// (calculated, pruned, or on another form), so it cannot
				// be evaluated against this form's fields.
				unresolvable[f.FieldName] = true
				break
			}
		}
	}

	type instanceValues map[int]map[string]string
	byRecord := make(map[int64]instanceValues)
	for _, v := range values {
		insts, ok := byRecord[v.RecordID]
		if !ok {
			insts = make(instanceValues)
			byRecord[v.RecordID] = insts
		}
		sibs, ok := insts[v.Instance]
		if !ok {
			sibs = make(map[string]string)
			insts[v.Instance] = sibs
		}
		sibs[v.FieldName] = v.Value
	}

	recordIDs := make([]int64, 0, len(byRecord))
	for id := range byRecord {
		recordIDs = append(recordIDs, id)
	}
	sort.Slice(recordIDs, func(i, j int) bool { return recordIDs[i] < recordIDs[j] })

	var findings []Finding
	for _, recordID := range recordIDs {
		insts := byRecord[recordID]
		maxInstance := 1
		for inst := range insts {
			if inst > maxInstance {
				maxInstance = inst
			}
		}

		for inst := 1; inst <= maxInstance; inst++ {
			siblings := insts[inst]

			var present, candidates []string
			for _, f := range expected {
				if siblings[f.FieldName] != "" {
					present = append(present, f.FieldName)
				} else {
					candidates = append(candidates, f.FieldName)
				}
			}
			if len(candidates) == 0 {
				continue
			}
			if len(present) == 0 {
				// Nothing entered on this instance; later instances of the
				// same record are not started either.
				break
			}

			env := branching.Env{
				EventID:   scope.EventID,
				EventName: scope.EventName,
				Siblings:  siblings,
			}
			var confirmed []string
			for _, name := range candidates {
				if unresolvable[name] {
					continue
				}
				if branching.Keep(exprs[name], env) {
					confirmed = append(confirmed, name)
				}
			}
			if len(confirmed) == 0 {
				continue
			}

			for _, name := range confirmed {
				findings = append(findings, Finding{
					ProjectID:     scope.ProjectID,
					EventID:       scope.EventID,
					EventName:     scope.EventName,
					RecordID:      recordID,
					FormName:      scope.FormName,
					FieldName:     name,
					Instance:      inst,
					MissingFields: confirmed,
					PresentFields: present,
				})
			}
		}
	}
	return findings
}

// expectedFields drops fields that can never be counted missing: calculated
// fields, completion markers, comment fields, and fields hidden on this
// event by action-tag annotations.
func expectedFields(scope Scope, fields []study.ExpectedField) []study.ExpectedField {
	var kept []study.ExpectedField
	for _, f := range fields {
		if f.ElementType == "calc" {
			continue
		}
		if branching.NeverMissing(f.FieldName, scope.FormName) {
			continue
		}
		if branching.HiddenByAnnotation(f.Annotation, f.FieldName, scope.EventName) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
