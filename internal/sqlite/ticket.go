package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ganot/dataqc/internal/domain/review"
	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/repository"
)

// Resolution reason a reviewer uses to confirm a flagged value as correct.
// Coordinates closed with this reason are excluded from future sweeps.
const reasonDataCorrect = "Data is correct"

// TicketRepository implements review.TicketRepository for SQLite
type TicketRepository struct {
	db *DB
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Exists checks the exact ticket key, assigned reviewer included
func (r *TicketRepository) Exists(ctx context.Context, key review.TicketKey) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM ticket_status
		WHERE project_id = ? AND event_id = ? AND record_id = ?
		  AND field_name = ? AND instance = ? AND assigned_user_id = ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query,
		key.ProjectID, key.EventID, key.RecordID,
		key.FieldName, key.Instance, key.AssignedUserID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket existence: %w", err)
	}

	return count > 0, nil
}

// ExistsAnyAssignee checks the ticket coordinate regardless of reviewer
func (r *TicketRepository) ExistsAnyAssignee(ctx context.Context, projectID, eventID, recordID int64, fieldName string, instance int) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM ticket_status
		WHERE project_id = ? AND event_id = ? AND record_id = ?
		  AND field_name = ? AND instance = ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query,
		projectID, eventID, recordID, fieldName, instance,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket coordinate: %w", err)
	}

	return count > 0, nil
}

// Open writes the paired status and resolution rows in one transaction.
// Returns repository.ErrDuplicateKey when a concurrent submission already
// inserted the same key.
func (r *TicketRepository) Open(ctx context.Context, t *review.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statusQuery := `
		INSERT INTO ticket_status
			(project_id, event_id, record_id, field_name, instance,
			 assigned_user_id, query_status, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := tx.ExecContext(ctx, statusQuery,
		t.Key.ProjectID, t.Key.EventID, t.Key.RecordID,
		t.Key.FieldName, t.Key.Instance, t.Key.AssignedUserID,
		review.StatusOpen, t.OpenedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert ticket status: %w", err)
	}

	ticketID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get ticket id: %w", err)
	}

	resolutionQuery := `
		INSERT INTO ticket_resolutions (ticket_id, value, reason, author_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, resolutionQuery,
		ticketID, t.Value, string(t.Reason), t.AuthorUserID, t.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket resolution: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Count returns the total number of ticket status rows
func (r *TicketRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticket_status`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// ConfirmedCorrect lists coordinates a reviewer resolved as correct data
func (r *TicketRepository) ConfirmedCorrect(ctx context.Context) ([]study.FieldKey, error) {
	query := `
		SELECT DISTINCT s.project_id, s.event_id, s.field_name
		FROM ticket_status s
		JOIN ticket_resolutions res ON res.ticket_id = s.ticket_id
		WHERE res.reason = ?
	`

	rows, err := r.db.QueryContext(ctx, query, reasonDataCorrect)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed-correct coordinates: %w", err)
	}
	defer rows.Close()

	var keys []study.FieldKey
	for rows.Next() {
		var k study.FieldKey
		if err := rows.Scan(&k.ProjectID, &k.EventID, &k.FieldName); err != nil {
			return nil, fmt.Errorf("failed to scan confirmed-correct row: %w", err)
		}
		keys = append(keys, k)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating confirmed-correct rows: %w", err)
	}

	return keys, nil
}

// OpenOlderThan lists open tickets opened before the cutoff
func (r *TicketRepository) OpenOlderThan(ctx context.Context, cutoff time.Time) ([]review.OpenTicket, error) {
	query := `
		SELECT s.project_id, s.assigned_user_id, u.username, u.email, s.opened_at
		FROM ticket_status s
		JOIN users u ON u.user_id = s.assigned_user_id
		WHERE s.query_status = ? AND s.opened_at < ?
		ORDER BY s.opened_at
	`

	rows, err := r.db.QueryContext(ctx, query, review.StatusOpen, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tickets: %w", err)
	}
	defer rows.Close()

	var tickets []review.OpenTicket
	for rows.Next() {
		var t review.OpenTicket
		err := rows.Scan(&t.ProjectID, &t.AssignedUserID, &t.Username, &t.Email, &t.OpenedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan overdue ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overdue ticket rows: %w", err)
	}

	return tickets, nil
}
