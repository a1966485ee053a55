package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganot/dataqc/internal/domain/review"
)

func testNotification(recipient int64) *review.Notification {
	return &review.Notification{
		ProjectID:       1,
		ProjectTitle:    "Cohort A",
		ChannelName:     "Assigned to a data query in project 1: Cohort A",
		AuthorUserID:    99,
		RecipientUserID: recipient,
		Body:            "A data query was opened for record 7, field hr (instance 1) on form visit: Flagged Value",
		SentAt:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifyCreatesThreadOnce(t *testing.T) {
	db := NewTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	created, err := repo.Notify(ctx, testNotification(42))
	require.NoError(t, err)
	require.True(t, created, "first ping creates the thread")

	created, err = repo.Notify(ctx, testNotification(42))
	require.NoError(t, err)
	require.False(t, created, "second ping reuses the thread")

	var threads, messages int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM message_threads`).Scan(&threads))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&messages))
	require.Equal(t, 1, threads)
	require.Equal(t, 2, messages)
}

func TestNotifySeparateThreadPerRecipient(t *testing.T) {
	db := NewTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	created, err := repo.Notify(ctx, testNotification(42))
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.Notify(ctx, testNotification(43))
	require.NoError(t, err)
	require.True(t, created, "each recipient gets their own thread in the channel")

	var threads int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM message_threads`).Scan(&threads))
	require.Equal(t, 2, threads)
}
