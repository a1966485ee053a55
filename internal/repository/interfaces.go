package repository

import (
	"context"

	"github.com/ganot/dataqc/internal/domain/study"
)

// ProjectRepository reads capture project metadata
type ProjectRepository interface {
	Get(ctx context.Context, id int64) (*study.Project, error)
	List(ctx context.Context) ([]study.Project, error)
}

// SchemaRepository reads the data dictionary and event/form mapping.
// Both are refreshed wholesale by the capture platform; this core consumes
// them as a read-only snapshot.
type SchemaRepository interface {
	FieldDefs(ctx context.Context) ([]study.FieldDef, error)
	EventForms(ctx context.Context) ([]study.EventForm, error)
}

// DataRepository reads observed record values and data-entry attribution
type DataRepository interface {
	ProjectValues(ctx context.Context, projectID int64) ([]study.RecordValue, error)
	CompletedRecords(ctx context.Context, projectID int64) ([]int64, error)
	EntryAuthors(ctx context.Context, projectID int64) ([]study.EntryAuthor, error)
}
