package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganot/dataqc/internal/domain/review"
	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/repository"
)

func seedUser(t *testing.T, db *DB, id int64, username string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (user_id, username, email) VALUES (?, ?, ?)`,
		id, username, username+"@example.org")
	require.NoError(t, err)
}

func testTicket(assignee int64) *review.Ticket {
	return &review.Ticket{
		Key: review.TicketKey{
			ProjectID:      1,
			EventID:        10,
			RecordID:       7,
			FieldName:      "hr",
			Instance:       1,
			AssignedUserID: assignee,
		},
		Value:        "500",
		Reason:       review.ReasonFlaggedValue,
		AuthorUserID: 99,
		OpenedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTicketOpenAndExists(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	ticket := testTicket(42)
	exists, err := repo.Exists(ctx, ticket.Key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.Open(ctx, ticket))

	exists, err = repo.Exists(ctx, ticket.Key)
	require.NoError(t, err)
	require.True(t, exists)

	// A different assignee is a different key
	otherKey := ticket.Key
	otherKey.AssignedUserID = 43
	exists, err = repo.Exists(ctx, otherKey)
	require.NoError(t, err)
	require.False(t, exists)

	// The paired resolution row was written
	var reason string
	var author int64
	err = db.QueryRow(`
		SELECT res.reason, res.author_user_id
		FROM ticket_resolutions res
		JOIN ticket_status s ON s.ticket_id = res.ticket_id
		WHERE s.project_id = 1 AND s.record_id = 7`).Scan(&reason, &author)
	require.NoError(t, err)
	require.Equal(t, string(review.ReasonFlaggedValue), reason)
	require.Equal(t, int64(99), author)
}

func TestTicketOpenDuplicateKey(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Open(ctx, testTicket(42)))

	err := repo.Open(ctx, testTicket(42))
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	// The losing transaction must not leave a dangling resolution row
	var resolutions int
	err = db.QueryRow(`SELECT COUNT(*) FROM ticket_resolutions`).Scan(&resolutions)
	require.NoError(t, err)
	require.Equal(t, 1, resolutions)
}

func TestTicketExistsAnyAssignee(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	exists, err := repo.ExistsAnyAssignee(ctx, 1, 10, 7, "hr", 1)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.Open(ctx, testTicket(42)))

	// Matches regardless of who the ticket was assigned to
	exists, err = repo.ExistsAnyAssignee(ctx, 1, 10, 7, "hr", 1)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsAnyAssignee(ctx, 1, 10, 7, "hr", 2)
	require.NoError(t, err)
	require.False(t, exists, "another instance is another coordinate")
}

func TestTicketCount(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	require.NoError(t, repo.Open(ctx, testTicket(42)))
	require.NoError(t, repo.Open(ctx, testTicket(43)))

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestTicketConfirmedCorrect(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	flagged := testTicket(42)
	require.NoError(t, repo.Open(ctx, flagged))

	confirmed := testTicket(42)
	confirmed.Key.FieldName = "bp"
	confirmed.Reason = review.Reason(reasonDataCorrect)
	require.NoError(t, repo.Open(ctx, confirmed))

	keys, err := repo.ConfirmedCorrect(ctx)
	require.NoError(t, err)
	require.Equal(t, []study.FieldKey{{ProjectID: 1, EventID: 10, FieldName: "bp"}}, keys)
}

func TestTicketOpenOlderThan(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	seedUser(t, db, 42, "jdoe")
	seedUser(t, db, 43, "asmith")

	old := testTicket(42)
	old.OpenedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Open(ctx, old))

	recent := testTicket(43)
	recent.OpenedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Open(ctx, recent))

	tickets, err := repo.OpenOlderThan(ctx, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Equal(t, int64(42), tickets[0].AssignedUserID)
	require.Equal(t, "jdoe", tickets[0].Username)
	require.Equal(t, "jdoe@example.org", tickets[0].Email)
}
