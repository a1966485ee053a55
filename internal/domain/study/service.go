package study

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// SchemaSource reads the data dictionary and event/form mapping.
type SchemaSource interface {
	FieldDefs(ctx context.Context) ([]FieldDef, error)
	EventForms(ctx context.Context) ([]EventForm, error)
}

// ExclusionSource lists (project, event, field) coordinates confirmed correct
// by a reviewer. Those fields must never be re-flagged as missing.
type ExclusionSource interface {
	ConfirmedCorrect(ctx context.Context) ([]FieldKey, error)
}

// DataSource reads observed record values per project.
type DataSource interface {
	ProjectValues(ctx context.Context, projectID int64) ([]RecordValue, error)
	CompletedRecords(ctx context.Context, projectID int64) ([]int64, error)
	EntryAuthors(ctx context.Context, projectID int64) ([]EntryAuthor, error)
}

// Service loads read-only snapshots of the capture store for one QC run.
type Service struct {
	schema     SchemaSource
	exclusions ExclusionSource
	data       DataSource
	logger     *slog.Logger
}

// NewService creates a snapshot loader.
func NewService(schema SchemaSource, exclusions ExclusionSource, data DataSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{schema: schema, exclusions: exclusions, data: data, logger: logger}
}

// Dictionary loads the merged schema snapshot. Field definitions are joined
// onto every event their form appears in; confirmed-correct coordinates are
// dropped so they cannot be flagged again.
func (s *Service) Dictionary(ctx context.Context) (*Dictionary, error) {
	var (
		fields    []FieldDef
		events    []EventForm
		confirmed []FieldKey
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fields, err = s.schema.FieldDefs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.schema.EventForms(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		confirmed, err = s.exclusions.ConfirmedCorrect(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading schema snapshot: %w", err)
	}

	excluded := make(map[FieldKey]bool, len(confirmed))
	for _, k := range confirmed {
		excluded[k] = true
	}

	dict := &Dictionary{}
	for _, ev := range events {
		for _, f := range fields {
			if f.ProjectID != ev.ProjectID || f.FormName != ev.FormName {
				continue
			}
			key := FieldKey{ProjectID: f.ProjectID, EventID: ev.EventID, FieldName: f.FieldName}
			if excluded[key] {
				continue
			}
			dict.Expected = append(dict.Expected, ExpectedField{
				FieldDef:  f,
				EventID:   ev.EventID,
				EventName: ev.EventName,
			})
		}
	}

	s.logger.Debug("loaded dictionary snapshot",
		"fields", len(fields), "event_forms", len(events), "expected", len(dict.Expected))
	return dict, nil
}

// ProjectData is the observed-value snapshot for one project, with
// completed records already excluded.
type ProjectData struct {
	ProjectID int64
	Values    []RecordValue
	Authors   []EntryAuthor
}

// ProjectData loads all record values and entry attribution for a project,
// dropping records whose subject has completed or exited the study.
func (s *Service) ProjectData(ctx context.Context, projectID int64) (*ProjectData, error) {
	var (
		values    []RecordValue
		completed []int64
		authors   []EntryAuthor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		values, err = s.data.ProjectValues(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = s.data.CompletedRecords(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		authors, err = s.data.EntryAuthors(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading project %d data: %w", projectID, err)
	}

	done := make(map[int64]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	pd := &ProjectData{ProjectID: projectID}
	for _, v := range values {
		if done[v.RecordID] {
			continue
		}
		if v.Instance < 1 {
			v.Instance = 1
		}
		pd.Values = append(pd.Values, v)
	}
	pd.Authors = authors
	return pd, nil
}
