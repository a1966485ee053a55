package missing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/dataqc/internal/domain/study"
)

func testScope() Scope {
	return Scope{ProjectID: 1, EventID: 10, EventName: "baseline_arm_1", FormName: "visit"}
}

func expected(names ...string) []study.ExpectedField {
	fields := make([]study.ExpectedField, len(names))
	for i, name := range names {
		fields[i] = study.ExpectedField{
			FieldDef: study.FieldDef{
				ProjectID:  1,
				FieldName:  name,
				FormName:   "visit",
				FieldOrder: i + 1,
			},
			EventID:   10,
			EventName: "baseline_arm_1",
		}
	}
	return fields
}

func value(recordID int64, field, val string, instance int) study.RecordValue {
	return study.RecordValue{
		ProjectID: 1,
		EventID:   10,
		RecordID:  recordID,
		FieldName: field,
		Instance:  instance,
		Value:     val,
	}
}

func newTestDetector() *Detector {
	return NewDetector(slog.Default())
}

func TestDetectPartiallyFilled(t *testing.T) {
	fields := expected("height", "weight", "hr", "bp", "temp")
	values := []study.RecordValue{
		value(7, "height", "170", 1),
		value(7, "weight", "65", 1),
		value(7, "hr", "72", 1),
	}

	findings := newTestDetector().Detect(testScope(), fields, values)
	require.Len(t, findings, 2)

	var names []string
	for _, f := range findings {
		names = append(names, f.FieldName)
		assert.Equal(t, int64(7), f.RecordID)
		assert.Equal(t, 1, f.Instance)
		assert.Equal(t, "visit", f.FormName)
		assert.ElementsMatch(t, []string{"bp", "temp"}, f.MissingFields)
		assert.ElementsMatch(t, []string{"height", "weight", "hr"}, f.PresentFields)
	}
	assert.ElementsMatch(t, []string{"bp", "temp"}, names)
}

func TestDetectUntouchedInstanceYieldsNothing(t *testing.T) {
	fields := expected("height", "weight", "hr", "bp", "temp")

	// The record exists only through another form's values; this form's
	// fields are all absent, so the form is not started.
	values := []study.RecordValue{
		value(7, "unrelated_field", "x", 1),
	}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, values))
}

func TestDetectFullyFilledYieldsNothing(t *testing.T) {
	fields := expected("height", "weight")
	values := []study.RecordValue{
		value(7, "height", "170", 1),
		value(7, "weight", "65", 1),
	}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, values))
}

func TestDetectBranchingLogicPrunes(t *testing.T) {
	fields := expected("age", "pregnancy_test")
	fields[1].BranchingLogic = "[age] > 18"

	minor := []study.RecordValue{value(7, "age", "15", 1)}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, minor),
		"absence explained by branching logic must not be flagged")

	adult := []study.RecordValue{value(8, "age", "21", 1)}
	findings := newTestDetector().Detect(testScope(), fields, adult)
	require.Len(t, findings, 1)
	assert.Equal(t, "pregnancy_test", findings[0].FieldName)
	assert.Equal(t, []string{"pregnancy_test"}, findings[0].MissingFields)
}

func TestDetectRepeatInstances(t *testing.T) {
	fields := expected("dose", "route")
	values := []study.RecordValue{
		value(7, "dose", "5", 1),
		value(7, "route", "oral", 1),
		value(7, "dose", "10", 2),
	}

	findings := newTestDetector().Detect(testScope(), fields, values)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Instance)
	assert.Equal(t, "route", findings[0].FieldName)
}

func TestDetectStopsAtUntouchedInstance(t *testing.T) {
	fields := expected("dose", "route")

	// Instance 2 is untouched; instance 3 exists because a later entry was
	// started and abandoned. Scanning must stop at the first untouched
	// instance for the record.
	values := []study.RecordValue{
		value(7, "dose", "5", 1),
		value(7, "dose", "10", 3),
	}

	findings := newTestDetector().Detect(testScope(), fields, values)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, findings[0].Instance)
}

func TestDetectSkipsNeverMissingFields(t *testing.T) {
	fields := expected("height", "visit_comment", "visit_complete")
	values := []study.RecordValue{
		value(7, "height", "170", 1),
	}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, values),
		"comment and completion fields are never missing-candidates")
}

func TestDetectSkipsCalculatedAndHiddenFields(t *testing.T) {
	fields := expected("height", "bmi", "secret")
	fields[1].ElementType = "calc"
	fields[2].Annotation = "@HIDDEN"

	values := []study.RecordValue{
		value(7, "height", "170", 1),
	}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, values))
}

func TestDetectDropsReferenceToPrunedField(t *testing.T) {
	fields := expected("weight", "bmi", "followup")
	fields[1].ElementType = "calc"
	fields[2].BranchingLogic = "[bmi] > 30"

	// bmi is calculated and therefore not expected, so followup's condition
	// is unresolvable even though a bmi value was observed.
	values := []study.RecordValue{
		value(7, "weight", "95", 1),
		value(7, "bmi", "35", 1),
	}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, values))
}

func TestDetectDropsCrossFormReference(t *testing.T) {
	fields := expected("height", "followup")
	fields[1].BranchingLogic = "[wbc] > 10"

	// wbc lives on another form in the same event; its value is visible in
	// the sibling map but it is not one of this form's expected fields.
	values := []study.RecordValue{
		value(7, "height", "170", 1),
		value(7, "wbc", "12", 1),
	}
	assert.Empty(t, newTestDetector().Detect(testScope(), fields, values))
}

func TestDetectMultipleRecords(t *testing.T) {
	fields := expected("height", "weight")
	values := []study.RecordValue{
		value(7, "height", "170", 1),
		value(9, "weight", "80", 1),
	}

	findings := newTestDetector().Detect(testScope(), fields, values)
	require.Len(t, findings, 2)
	assert.Equal(t, int64(7), findings[0].RecordID)
	assert.Equal(t, "weight", findings[0].FieldName)
	assert.Equal(t, int64(9), findings[1].RecordID)
	assert.Equal(t, "height", findings[1].FieldName)
}
