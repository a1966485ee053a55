package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ganot/dataqc/internal/domain/review"
	"github.com/ganot/dataqc/internal/domain/study"
)

// ProjectRepository is a mock for repository.ProjectRepository.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Get(ctx context.Context, id int64) (*study.Project, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*study.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context) ([]study.Project, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]study.Project); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// SchemaRepository is a mock for repository.SchemaRepository.
type SchemaRepository struct {
	mock.Mock
}

func (m *SchemaRepository) FieldDefs(ctx context.Context) ([]study.FieldDef, error) {
	args := m.Called(ctx)
	if defs, ok := args.Get(0).([]study.FieldDef); ok {
		return defs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SchemaRepository) EventForms(ctx context.Context) ([]study.EventForm, error) {
	args := m.Called(ctx)
	if evs, ok := args.Get(0).([]study.EventForm); ok {
		return evs, args.Error(1)
	}
	return nil, args.Error(1)
}

// DataRepository is a mock for repository.DataRepository.
type DataRepository struct {
	mock.Mock
}

func (m *DataRepository) ProjectValues(ctx context.Context, projectID int64) ([]study.RecordValue, error) {
	args := m.Called(ctx, projectID)
	if values, ok := args.Get(0).([]study.RecordValue); ok {
		return values, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DataRepository) CompletedRecords(ctx context.Context, projectID int64) ([]int64, error) {
	args := m.Called(ctx, projectID)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DataRepository) EntryAuthors(ctx context.Context, projectID int64) ([]study.EntryAuthor, error) {
	args := m.Called(ctx, projectID)
	if authors, ok := args.Get(0).([]study.EntryAuthor); ok {
		return authors, args.Error(1)
	}
	return nil, args.Error(1)
}

// TicketRepository is a mock for review.TicketRepository.
type TicketRepository struct {
	mock.Mock
}

func (m *TicketRepository) Exists(ctx context.Context, key review.TicketKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *TicketRepository) ExistsAnyAssignee(ctx context.Context, projectID, eventID, recordID int64, fieldName string, instance int) (bool, error) {
	args := m.Called(ctx, projectID, eventID, recordID, fieldName, instance)
	return args.Bool(0), args.Error(1)
}

func (m *TicketRepository) Open(ctx context.Context, t *review.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TicketRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *TicketRepository) ConfirmedCorrect(ctx context.Context) ([]study.FieldKey, error) {
	args := m.Called(ctx)
	if keys, ok := args.Get(0).([]study.FieldKey); ok {
		return keys, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TicketRepository) OpenOlderThan(ctx context.Context, cutoff time.Time) ([]review.OpenTicket, error) {
	args := m.Called(ctx, cutoff)
	if tickets, ok := args.Get(0).([]review.OpenTicket); ok {
		return tickets, args.Error(1)
	}
	return nil, args.Error(1)
}

// UserRepository is a mock for review.UserRepository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) DefaultReviewer(ctx context.Context, projectID int64, formName string) (*study.User, error) {
	args := m.Called(ctx, projectID, formName)
	if u, ok := args.Get(0).(*study.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// MessageRepository is a mock for review.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Notify(ctx context.Context, n *review.Notification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}
