package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/repository"
)

// ProjectRepository implements repository.ProjectRepository for SQLite
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, id int64) (*study.Project, error) {
	query := `
		SELECT project_id, title, resolution_enabled
		FROM projects
		WHERE project_id = ?
	`

	var p study.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Title,
		&p.ResolutionEnabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

// List returns all projects
func (r *ProjectRepository) List(ctx context.Context) ([]study.Project, error) {
	query := `
		SELECT project_id, title, resolution_enabled
		FROM projects
		ORDER BY project_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []study.Project
	for rows.Next() {
		var p study.Project
		if err := rows.Scan(&p.ID, &p.Title, &p.ResolutionEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return projects, nil
}
