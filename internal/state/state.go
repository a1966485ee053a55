// Package state persists the scan coordinator's durable bookkeeping: per-kind
// resume checkpoints, the anomaly spool, and the timestamps used by the
// routine watchdog and the overdue-ticket digest.
package state

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind selects which sweep a checkpoint belongs to.
type Kind string

const (
	KindOutlier Kind = "outlier"
	KindMissing Kind = "missing"
)

// Checkpoint is the resume token for one sweep kind. A zero Checkpoint means
// the sweep has not started. Name holds the field name for outlier sweeps and
// the form name for missing sweeps; EventID is set only for missing sweeps.
type Checkpoint struct {
	Finished  bool
	ProjectID int64
	EventID   int64
	Name      string
}

const finishedToken = "Finished"

// IsZero reports whether no unit has been completed yet.
func (c Checkpoint) IsZero() bool {
	return !c.Finished && c.ProjectID == 0 && c.EventID == 0 && c.Name == ""
}

// Token renders the checkpoint as its single-line file form.
func (c Checkpoint) Token() string {
	switch {
	case c.Finished:
		return finishedToken
	case c.IsZero():
		return ""
	case c.EventID != 0:
		return fmt.Sprintf("%d %d %s", c.ProjectID, c.EventID, c.Name)
	default:
		return fmt.Sprintf("%d %s", c.ProjectID, c.Name)
	}
}

// ParseCheckpoint reads a checkpoint token. Unparseable tokens are treated as
// a fresh start rather than an error; a stale or hand-edited file must never
// wedge the sweep.
func ParseCheckpoint(token string) Checkpoint {
	token = strings.TrimSpace(token)
	if token == "" {
		return Checkpoint{}
	}
	if token == finishedToken {
		return Checkpoint{Finished: true}
	}
	parts := strings.Fields(token)
	switch len(parts) {
	case 2:
		pid, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return Checkpoint{}
		}
		return Checkpoint{ProjectID: pid, Name: parts[1]}
	case 3:
		pid, err1 := strconv.ParseInt(parts[0], 10, 64)
		eid, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return Checkpoint{}
		}
		return Checkpoint{ProjectID: pid, EventID: eid, Name: parts[2]}
	}
	return Checkpoint{}
}

// SpoolEntry is one durable anomaly row awaiting (re)submission.
type SpoolEntry struct {
	ProjectID int64
	EventID   int64
	RecordID  int64
	FormName  string
	FieldName string
	Value     string
	Instance  int
}

// Store is the coordinator's durable state. Implementations must tolerate
// concurrent readers but may assume a single writer per sweep cycle.
type Store interface {
	Checkpoint(kind Kind) (Checkpoint, error)
	SetCheckpoint(kind Kind, cp Checkpoint) error

	AppendSpool(entries []SpoolEntry) error
	ReadSpool() ([]SpoolEntry, error)
	// ResetSpool truncates the spool back to an empty file. Called only
	// after a full resubmission pass has attempted every entry.
	ResetSpool() error

	LastRun() (time.Time, bool, error)
	SetLastRun(t time.Time) error

	LastDigest() (time.Time, bool, error)
	SetLastDigest(t time.Time) error
}
