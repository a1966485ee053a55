package study

import (
	"sort"
	"strings"
)

// Dictionary is the merged schema snapshot: every dictionary entry joined
// onto each event its form appears in, minus confirmed-correct exclusions.
type Dictionary struct {
	Expected []ExpectedField
}

// FieldUnit is one unit of outlier-sweep work.
type FieldUnit struct {
	ProjectID int64
	FieldName string
}

// FormUnit is one unit of missing-sweep work, identified by the form's
// completion marker field.
type FormUnit struct {
	ProjectID int64
	EventID   int64
	EventName string
	FormName  string
	FieldName string
}

// NumericFieldUnits returns the ordered (project, field) outlier work list
// for the given projects. Order is stable across runs so checkpoints resolve.
func (d *Dictionary) NumericFieldUnits(projects []int64) []FieldUnit {
	scope := projectSet(projects)
	seen := make(map[FieldUnit]bool)
	var units []FieldUnit
	for _, f := range d.Expected {
		if !scope[f.ProjectID] || !f.Numeric() {
			continue
		}
		u := FieldUnit{ProjectID: f.ProjectID, FieldName: f.FieldName}
		if seen[u] {
			continue
		}
		seen[u] = true
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].ProjectID != units[j].ProjectID {
			return units[i].ProjectID < units[j].ProjectID
		}
		return units[i].FieldName < units[j].FieldName
	})
	return units
}

// FormUnits returns the ordered (project, event, form) missing work list,
// one unit per form-completion marker.
func (d *Dictionary) FormUnits(projects []int64) []FormUnit {
	scope := projectSet(projects)
	seen := make(map[FormUnit]bool)
	var units []FormUnit
	for _, f := range d.Expected {
		if !scope[f.ProjectID] {
			continue
		}
		if f.FieldName != f.FormName+"_complete" {
			continue
		}
		u := FormUnit{
			ProjectID: f.ProjectID,
			EventID:   f.EventID,
			EventName: f.EventName,
			FormName:  f.FormName,
			FieldName: f.FieldName,
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.FieldName < b.FieldName
	})
	return units
}

// FormFields returns the expected fields for one (project, event, form),
// in dictionary order.
func (d *Dictionary) FormFields(projectID, eventID int64, formName string) []ExpectedField {
	var fields []ExpectedField
	for _, f := range d.Expected {
		if f.ProjectID == projectID && f.EventID == eventID && f.FormName == formName {
			fields = append(fields, f)
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].FieldOrder < fields[j].FieldOrder
	})
	return fields
}

// FieldForms returns the forms a field belongs to within a project. Most
// fields live on exactly one form.
func (d *Dictionary) FieldForms(projectID int64, fieldName string) []string {
	seen := make(map[string]bool)
	var forms []string
	for _, f := range d.Expected {
		if f.ProjectID == projectID && f.FieldName == fieldName && !seen[f.FormName] {
			seen[f.FormName] = true
			forms = append(forms, f.FormName)
		}
	}
	return forms
}

// Field returns the first expected entry for a project field.
func (d *Dictionary) Field(projectID int64, fieldName string) (ExpectedField, bool) {
	for _, f := range d.Expected {
		if f.ProjectID == projectID && f.FieldName == fieldName {
			return f, true
		}
	}
	return ExpectedField{}, false
}

// Contains reports whether the project's dictionary defines the field.
func (d *Dictionary) Contains(projectID int64, fieldName string) bool {
	for _, f := range d.Expected {
		if f.ProjectID == projectID && f.FieldName == fieldName {
			return true
		}
	}
	return false
}

// EventName returns the derived name of an event within a project.
func (d *Dictionary) EventName(projectID, eventID int64) string {
	for _, f := range d.Expected {
		if f.ProjectID == projectID && f.EventID == eventID {
			return f.EventName
		}
	}
	return ""
}

// CompletionMarker reports whether a field is a form-completion marker.
func CompletionMarker(fieldName string) bool {
	return strings.HasSuffix(fieldName, "_complete")
}

func projectSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
