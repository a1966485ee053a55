package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/dataqc/internal/domain/study"
)

// DataRepository implements repository.DataRepository for SQLite
type DataRepository struct {
	db *DB
}

// NewDataRepository creates a new DataRepository
func NewDataRepository(db *DB) *DataRepository {
	return &DataRepository{db: db}
}

// ProjectValues returns every observed value for a project
func (r *DataRepository) ProjectValues(ctx context.Context, projectID int64) ([]study.RecordValue, error) {
	query := `
		SELECT project_id, event_id, record_id, field_name, instance, value
		FROM data_values
		WHERE project_id = ?
		ORDER BY record_id, event_id, instance, field_name
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data values: %w", err)
	}
	defer rows.Close()

	var values []study.RecordValue
	for rows.Next() {
		var v study.RecordValue
		err := rows.Scan(&v.ProjectID, &v.EventID, &v.RecordID, &v.FieldName, &v.Instance, &v.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data value: %w", err)
		}
		values = append(values, v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data value rows: %w", err)
	}

	return values, nil
}

// CompletedRecords returns record IDs whose subject completed or exited
func (r *DataRepository) CompletedRecords(ctx context.Context, projectID int64) ([]int64, error) {
	query := `
		SELECT record_id
		FROM completed_records
		WHERE project_id = ?
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed records: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completed record: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed record rows: %w", err)
	}

	return ids, nil
}

// EntryAuthors returns the project's data-entry attribution history in
// chronological order
func (r *DataRepository) EntryAuthors(ctx context.Context, projectID int64) ([]study.EntryAuthor, error) {
	query := `
		SELECT e.project_id, e.event_id, e.record_id, e.form_name,
		       e.field_name, e.instance, e.user_id, u.username, u.email
		FROM entry_log e
		JOIN users u ON u.user_id = e.user_id
		WHERE e.project_id = ?
		ORDER BY e.logged_at, e.log_id
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry authors: %w", err)
	}
	defer rows.Close()

	var authors []study.EntryAuthor
	for rows.Next() {
		var a study.EntryAuthor
		err := rows.Scan(
			&a.ProjectID,
			&a.EventID,
			&a.RecordID,
			&a.FormName,
			&a.FieldName,
			&a.Instance,
			&a.UserID,
			&a.Username,
			&a.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry author: %w", err)
		}
		authors = append(authors, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry author rows: %w", err)
	}

	return authors, nil
}
