package sweep

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ganot/dataqc/internal/domain/missing"
	"github.com/ganot/dataqc/internal/domain/review"
	"github.com/ganot/dataqc/internal/state"
)

// Entry is one inbound single-record trigger payload.
type Entry struct {
	ProjectID   int64     `json:"project_id"`
	EventID     int64     `json:"event_id"`
	RecordID    int64     `json:"record_id"`
	FieldName   string    `json:"field_name"`
	Value       string    `json:"value"`
	Instance    int       `json:"instance"`
	AuthorUser  string    `json:"author_user"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// CheckEntry runs a targeted re-check for one changed record value: the
// field's outlier history across the project, and the missing-data state of
// the record's form instance. Fields the dictionary does not define are
// ignored. Dedup at submission keeps repeat triggers idempotent.
func (c *Coordinator) CheckEntry(ctx context.Context, e Entry) error {
	if e.Instance < 1 {
		e.Instance = 1
	}

	dict, err := c.study.Dictionary(ctx)
	if err != nil {
		return fmt.Errorf("loading schema snapshot: %w", err)
	}
	field, ok := dict.Field(e.ProjectID, e.FieldName)
	if !ok {
		c.logger.Debug("trigger for undefined field ignored",
			"project_id", e.ProjectID, "field", e.FieldName)
		return nil
	}

	cy := c.newCycle("trigger", "record")
	cy.dict = dict
	pd, err := c.projectData(ctx, cy, e.ProjectID)
	if err != nil {
		return err
	}

	if field.Numeric() {
		if err := c.flagFieldOutliers(ctx, cy, e.ProjectID, e.FieldName, pd.Values); err != nil {
			return err
		}
	}

	scope := missing.Scope{
		ProjectID: e.ProjectID,
		EventID:   e.EventID,
		EventName: dict.EventName(e.ProjectID, e.EventID),
		FormName:  field.FormName,
	}
	fields := dict.FormFields(e.ProjectID, e.EventID, field.FormName)
	for _, f := range c.detector.Detect(scope, fields, eventValues(pd.Values, e.EventID)) {
		if f.RecordID != e.RecordID {
			continue
		}
		if err := c.submitMissing(ctx, cy, f); err != nil {
			return err
		}
	}
	return nil
}

// CheckStale alerts operators when the periodic routine has not completed
// within the staleness window. Meant to run outside the routine itself.
func (c *Coordinator) CheckStale(ctx context.Context) error {
	last, ok, err := c.store.LastRun()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	age := c.opts.Now().Sub(last)
	if age <= c.opts.StaleAfter {
		return nil
	}
	body := fmt.Sprintf("The QC routine last completed a cycle start at %s (%s ago, threshold %s). The periodic trigger may have stopped firing.",
		last.Format(time.RFC3339), age.Round(time.Minute), c.opts.StaleAfter)
	return c.sink.Send(ctx, "QC routine stale", body)
}

// Resubmit drains the spool: every entry not already covered by a ticket is
// pushed to the store. The spool is truncated only after the full pass, and
// entries whose store write failed are re-appended so nothing is lost.
func (c *Coordinator) Resubmit(ctx context.Context) (int, error) {
	entries, err := c.store.ReadSpool()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	c.submit.InvalidateCaches()

	seen := make(map[state.SpoolEntry]bool, len(entries))
	var failed []state.SpoolEntry
	submitted := 0
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true

		exists, err := c.tickets.ExistsAnyAssignee(ctx, e.ProjectID, e.EventID, e.RecordID, e.FieldName, e.Instance)
		if err != nil {
			failed = append(failed, e)
			c.logger.Error("resubmission dedup check failed", "error", err,
				"project_id", e.ProjectID, "field", e.FieldName)
			continue
		}
		if exists {
			continue
		}

		reason := review.ReasonFlaggedValue
		if e.Value == "" {
			reason = review.ReasonMissingData
		}
		a := review.Anomaly{
			ProjectID: e.ProjectID,
			EventID:   e.EventID,
			RecordID:  e.RecordID,
			FormName:  e.FormName,
			FieldName: e.FieldName,
			Value:     e.Value,
			Instance:  e.Instance,
			Reason:    reason,
		}
		if _, err := c.submit.SubmitSpooled(ctx, a); err != nil {
			failed = append(failed, e)
			c.logger.Error("resubmission failed", "error", err,
				"project_id", e.ProjectID, "record_id", e.RecordID, "field", e.FieldName)
			continue
		}
		submitted++
	}

	if err := c.store.ResetSpool(); err != nil {
		return submitted, err
	}
	if len(failed) > 0 {
		if err := c.store.AppendSpool(failed); err != nil {
			return submitted, err
		}
	}
	c.logger.Info("spool drained", "entries", len(entries), "submitted", submitted, "requeued", len(failed))
	return submitted, nil
}

// sendOverdueDigest mails operators a summary of tickets open past the
// overdue window, at most once per digest interval.
func (c *Coordinator) sendOverdueDigest(ctx context.Context, cy *cycle) error {
	last, ok, err := c.store.LastDigest()
	if err != nil {
		return err
	}
	now := c.opts.Now()
	if ok && now.Sub(last) < c.opts.DigestInterval {
		return nil
	}

	open, err := c.tickets.OpenOlderThan(ctx, now.Add(-c.opts.OverdueAfter))
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	type assignee struct {
		username string
		email    string
		count    int
		oldest   time.Time
	}
	byUser := make(map[int64]*assignee)
	for _, t := range open {
		a, ok := byUser[t.AssignedUserID]
		if !ok {
			a = &assignee{username: t.Username, email: t.Email, oldest: t.OpenedAt}
			byUser[t.AssignedUserID] = a
		}
		a.count++
		if t.OpenedAt.Before(a.oldest) {
			a.oldest = t.OpenedAt
		}
	}
	assignees := make([]*assignee, 0, len(byUser))
	for _, a := range byUser {
		assignees = append(assignees, a)
	}
	sort.Slice(assignees, func(i, j int) bool { return assignees[i].username < assignees[j].username })

	body := fmt.Sprintf("%d data queries have been open for more than %s:\n", len(open), c.opts.OverdueAfter)
	for _, a := range assignees {
		body += fmt.Sprintf("  %s <%s>: %d open, oldest since %s\n",
			a.username, a.email, a.count, a.oldest.Format(time.RFC3339))
	}
	if err := c.sink.Send(ctx, "QC overdue ticket digest", body); err != nil {
		return err
	}
	cy.logger.Info("overdue digest sent", "tickets", len(open), "assignees", len(assignees))
	return c.store.SetLastDigest(now)
}
