package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/repository"
)

// UserRepository implements review.UserRepository for SQLite
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// DefaultReviewer returns the configured fallback reviewer for a project and
// form. A row with form_name '' is the project-wide default; an exact form
// match wins over it.
func (r *UserRepository) DefaultReviewer(ctx context.Context, projectID int64, formName string) (*study.User, error) {
	query := `
		SELECT u.user_id, u.username, u.email
		FROM default_reviewers d
		JOIN users u ON u.user_id = d.user_id
		WHERE d.project_id = ? AND d.form_name IN (?, '')
		ORDER BY CASE WHEN d.form_name = ? THEN 0 ELSE 1 END
		LIMIT 1
	`

	var u study.User
	err := r.db.QueryRowContext(ctx, query, projectID, formName, formName).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default reviewer: %w", err)
	}

	return &u, nil
}
