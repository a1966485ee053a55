package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProjectValues(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDataRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO data_values (project_id, event_id, record_id, field_name, instance, value) VALUES
		(1, 10, 7, 'hr', 1, '72'),
		(1, 10, 7, 'hr', 2, '75'),
		(2, 10, 7, 'hr', 1, '80')`)
	require.NoError(t, err)

	values, err := repo.ProjectValues(ctx, 1)
	require.NoError(t, err)
	require.Len(t, values, 2, "scoped to the requested project")
	require.Equal(t, 1, values[0].Instance)
	require.Equal(t, "72", values[0].Value)
	require.Equal(t, 2, values[1].Instance)
}

func TestCompletedRecords(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDataRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO completed_records (project_id, record_id) VALUES (1, 7), (1, 9), (2, 3)`)
	require.NoError(t, err)

	ids, err := repo.CompletedRecords(ctx, 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{7, 9}, ids)
}

func TestEntryAuthorsChronological(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDataRepository(db)
	ctx := context.Background()

	seedUser(t, db, 42, "jdoe")
	seedUser(t, db, 43, "asmith")

	// Two edits to the same value; the later one must sort last so the most
	// recent editor can be picked for ticket assignment.
	_, err := db.Exec(`
		INSERT INTO entry_log (project_id, event_id, record_id, form_name, field_name, instance, user_id, logged_at) VALUES
		(1, 10, 7, 'visit', 'hr', 1, 42, '2024-03-01 10:00:00'),
		(1, 10, 7, 'visit', 'hr', 1, 43, '2024-03-01 11:00:00')`)
	require.NoError(t, err)

	authors, err := repo.EntryAuthors(ctx, 1)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	require.Equal(t, "jdoe", authors[0].Username)
	require.Equal(t, "asmith", authors[1].Username)
	require.Equal(t, "asmith@example.org", authors[1].Email)
}
