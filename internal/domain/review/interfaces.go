package review

import (
	"context"
	"time"

	"github.com/ganot/dataqc/internal/domain/study"
)

// TicketRepository manages data-quality ticket persistence
type TicketRepository interface {
	// Exists checks the exact ticket key, assigned reviewer included.
	Exists(ctx context.Context, key TicketKey) (bool, error)
	// ExistsAnyAssignee checks the coordinate regardless of reviewer.
	ExistsAnyAssignee(ctx context.Context, projectID, eventID, recordID int64, fieldName string, instance int) (bool, error)
	// Open writes the paired status + resolution rows in one transaction.
	// Returns repository.ErrDuplicateKey when a concurrent submission won
	// the race.
	Open(ctx context.Context, t *Ticket) error
	// Count returns the total number of status rows, used for volume alerts.
	Count(ctx context.Context) (int, error)
	// ConfirmedCorrect lists (project, event, field) coordinates whose
	// resolution confirms the data as correct.
	ConfirmedCorrect(ctx context.Context) ([]study.FieldKey, error)
	// OpenOlderThan lists open tickets opened before the cutoff.
	OpenOlderThan(ctx context.Context, cutoff time.Time) ([]OpenTicket, error)
}

// UserRepository resolves reviewers when no entry author matches
type UserRepository interface {
	// DefaultReviewer returns the configured fallback reviewer for a
	// project/form, or repository.ErrNotFound when none is configured.
	DefaultReviewer(ctx context.Context, projectID int64, formName string) (*study.User, error)
}

// MessageRepository writes reviewer notifications into the thread/message/
// recipient structure
type MessageRepository interface {
	// Notify posts one message to the reviewer's thread in the project's
	// review channel, creating the thread and recipient rows when the
	// reviewer has no existing thread there. Reports whether a new thread
	// was created.
	Notify(ctx context.Context, n *Notification) (bool, error)
}
