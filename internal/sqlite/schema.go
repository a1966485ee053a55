package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/dataqc/internal/domain/study"
)

// SchemaRepository implements repository.SchemaRepository for SQLite
type SchemaRepository struct {
	db *DB
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(db *DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// FieldDefs returns every data dictionary entry
func (r *SchemaRepository) FieldDefs(ctx context.Context) ([]study.FieldDef, error) {
	query := `
		SELECT project_id, field_name, form_name, field_order,
		       element_type, validation_type, branching_logic, annotation
		FROM field_defs
		ORDER BY project_id, form_name, field_order
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list field defs: %w", err)
	}
	defer rows.Close()

	var defs []study.FieldDef
	for rows.Next() {
		var d study.FieldDef
		err := rows.Scan(
			&d.ProjectID,
			&d.FieldName,
			&d.FormName,
			&d.FieldOrder,
			&d.ElementType,
			&d.ValidationType,
			&d.BranchingLogic,
			&d.Annotation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field def: %w", err)
		}
		defs = append(defs, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating field def rows: %w", err)
	}

	return defs, nil
}

// EventForms returns the event-to-form mapping
func (r *SchemaRepository) EventForms(ctx context.Context) ([]study.EventForm, error) {
	query := `
		SELECT project_id, event_id, event_name, form_name
		FROM event_forms
		ORDER BY project_id, event_id, form_name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list event forms: %w", err)
	}
	defer rows.Close()

	var evs []study.EventForm
	for rows.Next() {
		var e study.EventForm
		if err := rows.Scan(&e.ProjectID, &e.EventID, &e.EventName, &e.FormName); err != nil {
			return nil, fmt.Errorf("failed to scan event form: %w", err)
		}
		evs = append(evs, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event form rows: %w", err)
	}

	return evs, nil
}
