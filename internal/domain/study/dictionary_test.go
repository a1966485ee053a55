package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expected(projectID, eventID int64, fieldName, formName string, order int, validation string) ExpectedField {
	return ExpectedField{
		FieldDef: FieldDef{
			ProjectID:      projectID,
			FieldName:      fieldName,
			FormName:       formName,
			FieldOrder:     order,
			ValidationType: validation,
		},
		EventID:   eventID,
		EventName: "baseline_arm_1",
	}
}

func testDictionary() *Dictionary {
	return &Dictionary{Expected: []ExpectedField{
		expected(1, 10, "visit_complete", "visit", 99, ""),
		expected(1, 10, "hr", "visit", 1, "float"),
		expected(1, 10, "bp", "visit", 2, ""),
		expected(1, 10, "labs_complete", "labs", 99, ""),
		expected(1, 10, "wbc", "labs", 1, "int"),
		expected(2, 20, "hr", "visit", 1, "float"),
		expected(2, 20, "visit_complete", "visit", 99, ""),
	}}
}

func TestNumericFieldUnits(t *testing.T) {
	d := testDictionary()

	units := d.NumericFieldUnits([]int64{1, 2})
	require.Equal(t, []FieldUnit{
		{ProjectID: 1, FieldName: "hr"},
		{ProjectID: 1, FieldName: "wbc"},
		{ProjectID: 2, FieldName: "hr"},
	}, units)

	scoped := d.NumericFieldUnits([]int64{2})
	require.Equal(t, []FieldUnit{{ProjectID: 2, FieldName: "hr"}}, scoped)
}

func TestFormUnits(t *testing.T) {
	units := testDictionary().FormUnits([]int64{1})
	require.Len(t, units, 2)
	assert.Equal(t, "labs_complete", units[0].FieldName, "stable order so checkpoints resolve")
	assert.Equal(t, "labs", units[0].FormName)
	assert.Equal(t, "visit_complete", units[1].FieldName)
}

func TestFormFieldsOrdered(t *testing.T) {
	fields := testDictionary().FormFields(1, 10, "visit")
	require.Len(t, fields, 3)
	assert.Equal(t, "hr", fields[0].FieldName)
	assert.Equal(t, "bp", fields[1].FieldName)
	assert.Equal(t, "visit_complete", fields[2].FieldName)
}

func TestFieldLookup(t *testing.T) {
	d := testDictionary()

	f, ok := d.Field(1, "hr")
	require.True(t, ok)
	assert.Equal(t, "visit", f.FormName)
	assert.True(t, f.Numeric())

	_, ok = d.Field(1, "nonexistent")
	assert.False(t, ok)

	assert.Equal(t, []string{"visit"}, d.FieldForms(1, "hr"))
	assert.Empty(t, d.FieldForms(1, "nonexistent"))
}

func TestCompletionMarker(t *testing.T) {
	assert.True(t, CompletionMarker("visit_complete"))
	assert.False(t, CompletionMarker("hr"))
}
