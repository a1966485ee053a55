package study_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/repository/mocks"
)

func def(projectID int64, fieldName, formName string, order int) study.FieldDef {
	return study.FieldDef{
		ProjectID:  projectID,
		FieldName:  fieldName,
		FormName:   formName,
		FieldOrder: order,
	}
}

func TestDictionaryJoinsFormsOntoEvents(t *testing.T) {
	schema := new(mocks.SchemaRepository)
	schema.On("FieldDefs", mock.Anything).Return([]study.FieldDef{
		def(1, "hr", "visit", 1),
		def(1, "wbc", "labs", 1),
		def(2, "hr", "visit", 1),
	}, nil)
	schema.On("EventForms", mock.Anything).Return([]study.EventForm{
		{ProjectID: 1, EventID: 10, EventName: "baseline_arm_1", FormName: "visit"},
		{ProjectID: 1, EventID: 11, EventName: "followup_arm_1", FormName: "visit"},
		{ProjectID: 1, EventID: 10, EventName: "baseline_arm_1", FormName: "labs"},
	}, nil)
	tickets := new(mocks.TicketRepository)
	tickets.On("ConfirmedCorrect", mock.Anything).Return([]study.FieldKey(nil), nil)

	svc := study.NewService(schema, tickets, new(mocks.DataRepository), slog.Default())
	dict, err := svc.Dictionary(context.Background())
	require.NoError(t, err)

	// visit appears in two events, so hr is expected twice; project 2 has no
	// event mapping and contributes nothing.
	require.Len(t, dict.Expected, 3)
	assert.True(t, dict.Contains(1, "hr"))
	assert.False(t, dict.Contains(2, "hr"))
	assert.Equal(t, "baseline_arm_1", dict.EventName(1, 10))
	assert.Equal(t, "followup_arm_1", dict.EventName(1, 11))
}

func TestDictionaryDropsConfirmedCorrect(t *testing.T) {
	schema := new(mocks.SchemaRepository)
	schema.On("FieldDefs", mock.Anything).Return([]study.FieldDef{
		def(1, "hr", "visit", 1),
		def(1, "bp", "visit", 2),
	}, nil)
	schema.On("EventForms", mock.Anything).Return([]study.EventForm{
		{ProjectID: 1, EventID: 10, EventName: "baseline_arm_1", FormName: "visit"},
	}, nil)
	tickets := new(mocks.TicketRepository)
	tickets.On("ConfirmedCorrect", mock.Anything).Return([]study.FieldKey{
		{ProjectID: 1, EventID: 10, FieldName: "hr"},
	}, nil)

	svc := study.NewService(schema, tickets, new(mocks.DataRepository), slog.Default())
	dict, err := svc.Dictionary(context.Background())
	require.NoError(t, err)

	require.Len(t, dict.Expected, 1)
	assert.Equal(t, "bp", dict.Expected[0].FieldName,
		"a reviewer-confirmed coordinate must never be re-flagged")
}

func TestProjectDataDropsCompletedRecords(t *testing.T) {
	data := new(mocks.DataRepository)
	data.On("ProjectValues", mock.Anything, int64(1)).Return([]study.RecordValue{
		{ProjectID: 1, EventID: 10, RecordID: 7, FieldName: "hr", Instance: 1, Value: "72"},
		{ProjectID: 1, EventID: 10, RecordID: 9, FieldName: "hr", Instance: 1, Value: "80"},
		{ProjectID: 1, EventID: 10, RecordID: 12, FieldName: "hr", Instance: 0, Value: "75"},
	}, nil)
	data.On("CompletedRecords", mock.Anything, int64(1)).Return([]int64{9}, nil)
	data.On("EntryAuthors", mock.Anything, int64(1)).Return([]study.EntryAuthor{
		{ProjectID: 1, RecordID: 7, UserID: 42, Username: "jdoe"},
	}, nil)

	svc := study.NewService(new(mocks.SchemaRepository), new(mocks.TicketRepository), data, slog.Default())
	pd, err := svc.ProjectData(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, pd.Values, 2)
	assert.Equal(t, int64(7), pd.Values[0].RecordID)
	assert.Equal(t, int64(12), pd.Values[1].RecordID)
	assert.Equal(t, 1, pd.Values[1].Instance, "instance floor is 1")
	require.Len(t, pd.Authors, 1)
}

func TestProjectDataSourceError(t *testing.T) {
	data := new(mocks.DataRepository)
	data.On("ProjectValues", mock.Anything, int64(1)).Return(nil, assert.AnError)
	data.On("CompletedRecords", mock.Anything, int64(1)).Return([]int64(nil), nil)
	data.On("EntryAuthors", mock.Anything, int64(1)).Return([]study.EntryAuthor(nil), nil)

	svc := study.NewService(new(mocks.SchemaRepository), new(mocks.TicketRepository), data, slog.Default())
	_, err := svc.ProjectData(context.Background(), 1)
	require.Error(t, err)
}
