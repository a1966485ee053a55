package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganot/dataqc/internal/repository"
)

func seedProject(t *testing.T, db *DB, id int64, title string, resolutionEnabled bool) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO projects (project_id, title, resolution_enabled) VALUES (?, ?, ?)`,
		id, title, resolutionEnabled)
	require.NoError(t, err)
}

func TestProjectGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	seedProject(t, db, 1, "Cohort A", true)

	p, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), p.ID)
	require.Equal(t, "Cohort A", p.Title)
	require.True(t, p.ResolutionEnabled)
}

func TestProjectGetNotFound(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)

	_, err := repo.Get(context.Background(), 99)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProjectList(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	seedProject(t, db, 2, "Cohort B", false)
	seedProject(t, db, 1, "Cohort A", true)

	projects, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, int64(1), projects[0].ID)
	require.Equal(t, int64(2), projects[1].ID)
}
