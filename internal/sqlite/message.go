package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/dataqc/internal/domain/review"
)

// MessageRepository implements review.MessageRepository for SQLite
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Notify posts one message to the recipient's thread in the project's review
// channel, creating the thread and recipient rows when the recipient has no
// thread there yet. Reports whether a new thread was created.
func (r *MessageRepository) Notify(ctx context.Context, n *review.Notification) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	threadQuery := `
		SELECT t.thread_id
		FROM message_threads t
		JOIN message_recipients mr ON mr.thread_id = t.thread_id
		WHERE t.project_id = ? AND t.channel_name = ? AND mr.recipient_user_id = ?
		LIMIT 1
	`

	var threadID int64
	created := false
	err = tx.QueryRowContext(ctx, threadQuery, n.ProjectID, n.ChannelName, n.RecipientUserID).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO message_threads (project_id, channel_name) VALUES (?, ?)`,
			n.ProjectID, n.ChannelName)
		if err != nil {
			return false, fmt.Errorf("failed to create thread: %w", err)
		}
		threadID, err = res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("failed to get thread id: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO message_recipients (thread_id, recipient_user_id) VALUES (?, ?)`,
			threadID, n.RecipientUserID)
		if err != nil {
			return false, fmt.Errorf("failed to add recipient: %w", err)
		}
		created = true
	} else if err != nil {
		return false, fmt.Errorf("failed to find thread: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, author_user_id, body, sent_at) VALUES (?, ?, ?, ?)`,
		threadID, n.AuthorUserID, n.Body, n.SentAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}
