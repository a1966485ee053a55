package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/repository"
)

// Spooler records anomalies durably before any store write is attempted.
type Spooler interface {
	Append(a Anomaly) error
}

// SpoolFunc adapts a function to the Spooler interface.
type SpoolFunc func(a Anomaly) error

func (f SpoolFunc) Append(a Anomaly) error { return f(a) }

// Options control submission side effects.
type Options struct {
	// Production enables store writes. When false every anomaly is spooled
	// only, for later resubmission.
	Production bool
	// Notify enables messenger pings to resolved reviewers.
	Notify bool
	// AuthorUserID is the service account recorded as the ticket opener and
	// message author.
	AuthorUserID int64
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service turns detector anomalies into review tickets: spool, reviewer
// resolution, dedup, paired store write, optional notification.
type Service struct {
	projects repository.ProjectRepository
	data     repository.DataRepository
	tickets  TicketRepository
	users    UserRepository
	messages MessageRepository
	spool    Spooler
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	authors map[int64][]study.EntryAuthor
	cached  map[int64]*study.Project
}

func NewService(
	projects repository.ProjectRepository,
	data repository.DataRepository,
	tickets TicketRepository,
	users UserRepository,
	messages MessageRepository,
	spool Spooler,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		projects: projects,
		data:     data,
		tickets:  tickets,
		users:    users,
		messages: messages,
		spool:    spool,
		opts:     opts,
		logger:   logger.With("component", "review"),
		authors:  make(map[int64][]study.EntryAuthor),
		cached:   make(map[int64]*study.Project),
	}
}

// Submit routes one anomaly to the ticket store. The anomaly is appended to
// the spool first, unconditionally; store writes then happen only in
// production mode and only for projects with the resolution workflow enabled.
// An existing ticket at the key is a no-op reported as already open, never an
// error, including when a concurrent submission wins the insert race.
func (s *Service) Submit(ctx context.Context, a Anomaly) (Outcome, error) {
	if err := s.spool.Append(a); err != nil {
		return OutcomeSpooled, fmt.Errorf("spool anomaly: %w", err)
	}
	if !s.opts.Production {
		return OutcomeSpooled, nil
	}
	return s.SubmitSpooled(ctx, a)
}

// SubmitSpooled performs the store-write half of Submit for an anomaly that
// is already on the spool. Used by the bulk resubmission pass.
func (s *Service) SubmitSpooled(ctx context.Context, a Anomaly) (Outcome, error) {
	project, err := s.project(ctx, a.ProjectID)
	if err != nil {
		return OutcomeSpooled, err
	}
	if !project.ResolutionEnabled {
		s.logger.Info("resolution workflow disabled, anomaly left on spool",
			"project_id", a.ProjectID, "field", a.FieldName)
		return OutcomeSpooled, nil
	}

	reviewer, err := s.resolveReviewer(ctx, a)
	if err != nil {
		return OutcomeSpooled, err
	}

	key := TicketKey{
		ProjectID:      a.ProjectID,
		EventID:        a.EventID,
		RecordID:       a.RecordID,
		FieldName:      a.FieldName,
		Instance:       a.Instance,
		AssignedUserID: reviewer.ID,
	}
	exists, err := s.tickets.Exists(ctx, key)
	if err != nil {
		return OutcomeSpooled, fmt.Errorf("check existing ticket: %w", err)
	}
	if exists {
		s.logger.Debug("ticket already open", "project_id", a.ProjectID,
			"record_id", a.RecordID, "field", a.FieldName, "instance", a.Instance)
		return OutcomeAlreadyOpen, nil
	}

	ticket := &Ticket{
		Key:          key,
		Value:        a.Value,
		Reason:       a.Reason,
		AuthorUserID: s.opts.AuthorUserID,
		OpenedAt:     s.opts.Now(),
	}
	if err := s.tickets.Open(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost a race with a concurrent submission for the same key.
			s.logger.Warn("duplicate ticket write lost race", "project_id", a.ProjectID,
				"record_id", a.RecordID, "field", a.FieldName)
			return OutcomeAlreadyOpen, nil
		}
		return OutcomeSpooled, fmt.Errorf("open ticket: %w", err)
	}

	if s.opts.Notify {
		if err := s.notify(ctx, project, reviewer, a); err != nil {
			// The ticket exists; a failed ping must not fail the submission.
			s.logger.Error("reviewer notification failed", "error", err,
				"project_id", a.ProjectID, "reviewer", reviewer.Username)
		}
	}

	s.logger.Info("ticket opened", "project_id", a.ProjectID, "record_id", a.RecordID,
		"field", a.FieldName, "instance", a.Instance, "reviewer", reviewer.Username,
		"reason", string(a.Reason))
	return OutcomeCreated, nil
}

// resolveReviewer finds the responsible reviewer by progressively narrowing
// the project's entry-author history: form, then event, then field, then
// record, then instance. A filter that would eliminate every survivor is
// skipped, so the result is the most specific non-empty match. With no
// authors at all the project/form default reviewer applies.
func (s *Service) resolveReviewer(ctx context.Context, a Anomaly) (*study.User, error) {
	authors, err := s.projectAuthors(ctx, a.ProjectID)
	if err != nil {
		return nil, err
	}

	survivors := authors
	filters := []func(e study.EntryAuthor) bool{
		func(e study.EntryAuthor) bool { return e.FormName == a.FormName },
		func(e study.EntryAuthor) bool { return e.EventID == a.EventID },
		func(e study.EntryAuthor) bool { return e.FieldName == a.FieldName },
		func(e study.EntryAuthor) bool { return e.RecordID == a.RecordID },
		func(e study.EntryAuthor) bool { return e.Instance == a.Instance },
	}
	for _, keep := range filters {
		var next []study.EntryAuthor
		for _, e := range survivors {
			if keep(e) {
				next = append(next, e)
			}
		}
		if len(next) > 0 {
			survivors = next
		}
	}
	if len(survivors) > 0 {
		last := survivors[len(survivors)-1]
		return &study.User{ID: last.UserID, Username: last.Username, Email: last.Email}, nil
	}

	fallback, err := s.users.DefaultReviewer(ctx, a.ProjectID, a.FormName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("project %d form %q: %w", a.ProjectID, a.FormName, ErrNoReviewer)
	}
	if err != nil {
		return nil, fmt.Errorf("default reviewer lookup: %w", err)
	}
	return fallback, nil
}

func (s *Service) notify(ctx context.Context, project *study.Project, reviewer *study.User, a Anomaly) error {
	n := &Notification{
		ProjectID:       project.ID,
		ProjectTitle:    project.Title,
		ChannelName:     fmt.Sprintf("Assigned to a data query in project %d: %s", project.ID, project.Title),
		AuthorUserID:    s.opts.AuthorUserID,
		RecipientUserID: reviewer.ID,
		Body: fmt.Sprintf(
			"A data query was opened for record %d, field %s (instance %d) on form %s: %s",
			a.RecordID, a.FieldName, a.Instance, a.FormName, string(a.Reason)),
		SentAt: s.opts.Now(),
	}
	created, err := s.messages.Notify(ctx, n)
	if err != nil {
		return err
	}
	if created {
		s.logger.Debug("notification thread created", "project_id", project.ID,
			"reviewer", reviewer.Username)
	}
	return nil
}

func (s *Service) project(ctx context.Context, id int64) (*study.Project, error) {
	s.mu.Lock()
	p, ok := s.cached[id]
	s.mu.Unlock()
	if ok {
		return p, nil
	}
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", id, err)
	}
	s.mu.Lock()
	s.cached[id] = p
	s.mu.Unlock()
	return p, nil
}

func (s *Service) projectAuthors(ctx context.Context, projectID int64) ([]study.EntryAuthor, error) {
	s.mu.Lock()
	authors, ok := s.authors[projectID]
	s.mu.Unlock()
	if ok {
		return authors, nil
	}
	authors, err := s.data.EntryAuthors(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load entry authors for project %d: %w", projectID, err)
	}
	s.mu.Lock()
	s.authors[projectID] = authors
	s.mu.Unlock()
	return authors, nil
}

// InvalidateCaches drops memoized project metadata and author history.
// Called at the start of each sweep cycle so a long-lived service observes
// schema and log changes.
func (s *Service) InvalidateCaches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors = make(map[int64][]study.EntryAuthor)
	s.cached = make(map[int64]*study.Project)
}
