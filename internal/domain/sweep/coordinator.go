// Package sweep drives full QC cycles over the configured projects: the
// missing-data sweep, then the outlier sweep, then the empty-form check,
// with a durable checkpoint after every completed unit of work.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ganot/dataqc/internal/alert"
	"github.com/ganot/dataqc/internal/domain/missing"
	"github.com/ganot/dataqc/internal/domain/outlier"
	"github.com/ganot/dataqc/internal/domain/review"
	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/state"
)

// Submitter routes anomalies to the ticket store.
type Submitter interface {
	Submit(ctx context.Context, a review.Anomaly) (review.Outcome, error)
	SubmitSpooled(ctx context.Context, a review.Anomaly) (review.Outcome, error)
	InvalidateCaches()
}

// Options tune a coordinator.
type Options struct {
	// Projects scopes every sweep to these project IDs.
	Projects []int64
	// AlertThreshold is the ticket-count growth within one cycle that
	// triggers the volume alert.
	AlertThreshold int
	// StaleAfter is how long the routine may go without completing before
	// the watchdog alerts.
	StaleAfter time.Duration
	// OverdueAfter is how long a ticket may stay open before it appears in
	// the digest.
	OverdueAfter time.Duration
	// DigestInterval is the minimum spacing between digests.
	DigestInterval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.StaleAfter <= 0 {
		o.StaleAfter = 24 * time.Hour
	}
	if o.OverdueAfter <= 0 {
		o.OverdueAfter = 24 * time.Hour
	}
	if o.DigestInterval <= 0 {
		o.DigestInterval = 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Coordinator owns sweep sequencing and checkpointing. It is effectively
// single-writer: the caller must not run two full cycles concurrently.
type Coordinator struct {
	study    *study.Service
	detector *missing.Detector
	strategy outlier.Strategy
	submit   Submitter
	tickets  review.TicketRepository
	store    state.Store
	sink     alert.Sink
	opts     Options
	logger   *slog.Logger
}

func NewCoordinator(
	studySvc *study.Service,
	detector *missing.Detector,
	strategy outlier.Strategy,
	submit Submitter,
	tickets review.TicketRepository,
	store state.Store,
	sink alert.Sink,
	opts Options,
	logger *slog.Logger,
) *Coordinator {
	opts.defaults()
	return &Coordinator{
		study:    studySvc,
		detector: detector,
		strategy: strategy,
		submit:   submit,
		tickets:  tickets,
		store:    store,
		sink:     sink,
		opts:     opts,
		logger:   logger.With("component", "sweep"),
	}
}

// cycle carries the per-run context a sweep shares between units.
type cycle struct {
	runID    string
	dict     *study.Dictionary
	data     map[int64]*study.ProjectData
	baseline int
	alerted  bool
	logger   *slog.Logger
}

// newCycle mints the run id and stamps the same id on the cycle's logger.
func (c *Coordinator) newCycle(attrs ...any) *cycle {
	cy := &cycle{
		runID: uuid.NewString(),
		data:  make(map[int64]*study.ProjectData),
	}
	cy.logger = c.logger.With(append([]any{"run_id", cy.runID}, attrs...)...)
	return cy
}

func (c *Coordinator) projectData(ctx context.Context, cy *cycle, projectID int64) (*study.ProjectData, error) {
	if pd, ok := cy.data[projectID]; ok {
		return pd, nil
	}
	pd, err := c.study.ProjectData(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cy.data[projectID] = pd
	return pd, nil
}

// RunCycle executes one full QC cycle: missing sweep, then outlier sweep,
// then the empty-form check, then the overdue digest. If a previous cycle
// was interrupted, the unfinished sweeps resume from their checkpoints; the
// last checkpointed unit is re-executed, which submission dedup makes safe.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	cy := c.newCycle()
	cy.logger.Info("cycle starting", "projects", c.opts.Projects, "strategy", c.strategy.Name())

	if err := c.store.SetLastRun(c.opts.Now()); err != nil {
		return fmt.Errorf("record routine timestamp: %w", err)
	}
	c.submit.InvalidateCaches()

	dict, err := c.study.Dictionary(ctx)
	if err != nil {
		c.operatorAlert(ctx, cy, "QC cycle aborted", fmt.Sprintf("loading schema snapshot failed: %v", err))
		return err
	}
	cy.dict = dict

	cy.baseline, err = c.tickets.Count(ctx)
	if err != nil {
		return fmt.Errorf("baseline ticket count: %w", err)
	}

	missingCP, err := c.store.Checkpoint(state.KindMissing)
	if err != nil {
		return err
	}
	outlierCP, err := c.store.Checkpoint(state.KindOutlier)
	if err != nil {
		return err
	}
	// Both sweeps finished means the previous cycle completed; start fresh.
	if missingCP.Finished && outlierCP.Finished {
		missingCP, outlierCP = state.Checkpoint{}, state.Checkpoint{}
		if err := c.store.SetCheckpoint(state.KindMissing, missingCP); err != nil {
			return err
		}
		if err := c.store.SetCheckpoint(state.KindOutlier, outlierCP); err != nil {
			return err
		}
	}

	// The outlier sweep must not start until the missing sweep for this
	// cycle reports finished.
	if !missingCP.Finished {
		if err := c.runMissingSweep(ctx, cy, missingCP); err != nil {
			c.operatorAlert(ctx, cy, "QC missing sweep aborted", err.Error())
			return err
		}
	}
	if !outlierCP.Finished {
		if err := c.runOutlierSweep(ctx, cy, outlierCP); err != nil {
			c.operatorAlert(ctx, cy, "QC outlier sweep aborted", err.Error())
			return err
		}
	}
	if err := c.runEmptyFormCheck(ctx, cy); err != nil {
		c.operatorAlert(ctx, cy, "QC empty-form check aborted", err.Error())
		return err
	}

	if err := c.sendOverdueDigest(ctx, cy); err != nil {
		cy.logger.Error("overdue digest failed", "error", err)
	}

	cy.logger.Info("cycle finished")
	return nil
}

// runMissingSweep walks the (project, event, form) work list.
func (c *Coordinator) runMissingSweep(ctx context.Context, cy *cycle, cp state.Checkpoint) error {
	units := cy.dict.FormUnits(c.opts.Projects)
	start := 0
	if !cp.IsZero() {
		start = resumeIndex(len(units), cp, func(i int) state.Checkpoint {
			return state.Checkpoint{ProjectID: units[i].ProjectID, EventID: units[i].EventID, Name: units[i].FieldName}
		})
		cy.logger.Info("missing sweep resuming", "unit", start, "of", len(units))
	}

	for i := start; i < len(units); i++ {
		u := units[i]
		pd, err := c.projectData(ctx, cy, u.ProjectID)
		if err != nil {
			return err
		}

		scope := missing.Scope{
			ProjectID: u.ProjectID,
			EventID:   u.EventID,
			EventName: u.EventName,
			FormName:  u.FormName,
		}
		fields := cy.dict.FormFields(u.ProjectID, u.EventID, u.FormName)
		findings := c.detector.Detect(scope, fields, eventValues(pd.Values, u.EventID))

		for _, f := range findings {
			if err := c.submitMissing(ctx, cy, f); err != nil {
				return err
			}
		}

		cp := state.Checkpoint{ProjectID: u.ProjectID, EventID: u.EventID, Name: u.FieldName}
		if err := c.store.SetCheckpoint(state.KindMissing, cp); err != nil {
			return err
		}
		if err := c.checkVolume(ctx, cy); err != nil {
			return err
		}
	}
	return c.store.SetCheckpoint(state.KindMissing, state.Checkpoint{Finished: true})
}

// runOutlierSweep walks the (project, field) work list with the configured
// strategy.
func (c *Coordinator) runOutlierSweep(ctx context.Context, cy *cycle, cp state.Checkpoint) error {
	units := cy.dict.NumericFieldUnits(c.opts.Projects)
	start := 0
	if !cp.IsZero() {
		start = resumeIndex(len(units), cp, func(i int) state.Checkpoint {
			return state.Checkpoint{ProjectID: units[i].ProjectID, Name: units[i].FieldName}
		})
		cy.logger.Info("outlier sweep resuming", "unit", start, "of", len(units))
	}

	for i := start; i < len(units); i++ {
		u := units[i]
		pd, err := c.projectData(ctx, cy, u.ProjectID)
		if err != nil {
			return err
		}

		if err := c.flagFieldOutliers(ctx, cy, u.ProjectID, u.FieldName, pd.Values); err != nil {
			return err
		}

		cp := state.Checkpoint{ProjectID: u.ProjectID, Name: u.FieldName}
		if err := c.store.SetCheckpoint(state.KindOutlier, cp); err != nil {
			return err
		}
		if err := c.checkVolume(ctx, cy); err != nil {
			return err
		}
	}
	return c.store.SetCheckpoint(state.KindOutlier, state.Checkpoint{Finished: true})
}

// flagFieldOutliers runs the strategy over one field's numeric history and
// submits whatever it flags.
func (c *Coordinator) flagFieldOutliers(ctx context.Context, cy *cycle, projectID int64, fieldName string, values []study.RecordValue) error {
	var obs []outlier.Observation
	raw := make(map[outlier.Observation]string)

	forms := cy.dict.FieldForms(projectID, fieldName)
	formName := ""
	if len(forms) > 0 {
		formName = forms[0]
	}

	for _, v := range values {
		if v.FieldName != fieldName {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
		if err != nil {
			continue
		}
		o := outlier.Observation{
			ProjectID: projectID,
			EventID:   v.EventID,
			RecordID:  v.RecordID,
			FormName:  formName,
			FieldName: fieldName,
			Instance:  v.Instance,
			Value:     x,
		}
		obs = append(obs, o)
		raw[o] = v.Value
	}
	if len(obs) == 0 {
		return nil
	}

	for _, o := range c.strategy.Flag(obs) {
		a := review.Anomaly{
			ProjectID: o.ProjectID,
			EventID:   o.EventID,
			RecordID:  o.RecordID,
			FormName:  o.FormName,
			FieldName: o.FieldName,
			Value:     raw[o],
			Instance:  o.Instance,
			Reason:    review.ReasonFlaggedValue,
		}
		if err := c.submitAnomaly(ctx, cy, a); err != nil {
			return err
		}
	}
	return nil
}

// runEmptyFormCheck flags form instances whose completion marker is set but
// which hold no other data. Runs only after both sweeps have finished.
func (c *Coordinator) runEmptyFormCheck(ctx context.Context, cy *cycle) error {
	for _, u := range cy.dict.FormUnits(c.opts.Projects) {
		pd, err := c.projectData(ctx, cy, u.ProjectID)
		if err != nil {
			return err
		}
		fields := cy.dict.FormFields(u.ProjectID, u.EventID, u.FormName)

		type slot struct {
			recordID int64
			instance int
		}
		markers := make(map[slot]string)
		filled := make(map[slot]bool)
		for _, v := range eventValues(pd.Values, u.EventID) {
			s := slot{v.RecordID, v.Instance}
			if v.FieldName == u.FieldName {
				markers[s] = v.Value
				continue
			}
			for _, f := range fields {
				if f.FieldName == v.FieldName && v.Value != "" {
					filled[s] = true
					break
				}
			}
		}

		slots := make([]slot, 0, len(markers))
		for s := range markers {
			if !filled[s] {
				slots = append(slots, s)
			}
		}
		sort.Slice(slots, func(i, j int) bool {
			if slots[i].recordID != slots[j].recordID {
				return slots[i].recordID < slots[j].recordID
			}
			return slots[i].instance < slots[j].instance
		})

		for _, s := range slots {
			a := review.Anomaly{
				ProjectID: u.ProjectID,
				EventID:   u.EventID,
				RecordID:  s.recordID,
				FormName:  u.FormName,
				FieldName: u.FieldName,
				Value:     markers[s],
				Instance:  s.instance,
				Reason:    review.ReasonMissingData,
			}
			if err := c.submitAnomaly(ctx, cy, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator) submitMissing(ctx context.Context, cy *cycle, f missing.Finding) error {
	return c.submitAnomaly(ctx, cy, review.Anomaly{
		ProjectID: f.ProjectID,
		EventID:   f.EventID,
		RecordID:  f.RecordID,
		FormName:  f.FormName,
		FieldName: f.FieldName,
		Instance:  f.Instance,
		Reason:    review.ReasonMissingData,
	})
}

// submitAnomaly is the sweep-side dedup gate: a ticket at the coordinate
// under any assignee suppresses resubmission before the anomaly is even
// spooled.
func (c *Coordinator) submitAnomaly(ctx context.Context, cy *cycle, a review.Anomaly) error {
	exists, err := c.tickets.ExistsAnyAssignee(ctx, a.ProjectID, a.EventID, a.RecordID, a.FieldName, a.Instance)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		return nil
	}
	outcome, err := c.submit.Submit(ctx, a)
	if err != nil {
		return fmt.Errorf("submit anomaly (project %d record %d field %s): %w",
			a.ProjectID, a.RecordID, a.FieldName, err)
	}
	cy.logger.Debug("anomaly submitted", "outcome", outcome.String(),
		"project_id", a.ProjectID, "record_id", a.RecordID,
		"field", a.FieldName, "instance", a.Instance, "reason", string(a.Reason))
	return nil
}

// checkVolume re-checks ticket growth since cycle start after every unit and
// sends at most one alert per cycle. The sweep continues either way.
func (c *Coordinator) checkVolume(ctx context.Context, cy *cycle) error {
	if cy.alerted || c.opts.AlertThreshold <= 0 {
		return nil
	}
	count, err := c.tickets.Count(ctx)
	if err != nil {
		return fmt.Errorf("ticket count: %w", err)
	}
	growth := count - cy.baseline
	if growth <= c.opts.AlertThreshold {
		return nil
	}
	cy.alerted = true
	body := fmt.Sprintf("Ticket volume grew by %d this cycle (threshold %d, run %s). The sweep is continuing.",
		growth, c.opts.AlertThreshold, cy.runID)
	c.operatorAlert(ctx, cy, "QC ticket volume spike", body)
	return nil
}

func (c *Coordinator) operatorAlert(ctx context.Context, cy *cycle, subject, body string) {
	if err := c.sink.Send(ctx, subject, body); err != nil {
		cy.logger.Error("operator alert failed", "subject", subject, "error", err)
	}
}

// resumeIndex finds the work-list position of a saved checkpoint. The
// checkpointed unit itself is re-executed. An unresolvable key (schema
// changed between runs) falls back to the start of the list.
func resumeIndex(n int, cp state.Checkpoint, at func(i int) state.Checkpoint) int {
	for i := 0; i < n; i++ {
		if at(i) == cp {
			return i
		}
	}
	return 0
}

func eventValues(values []study.RecordValue, eventID int64) []study.RecordValue {
	var out []study.RecordValue
	for _, v := range values {
		if v.EventID == eventID {
			out = append(out, v)
		}
	}
	return out
}
