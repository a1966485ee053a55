package review

import "time"

// Reason is the free-text resolution reason attached to a ticket.
type Reason string

const (
	ReasonFlaggedValue Reason = "Flagged Value"
	ReasonMissingData  Reason = "Missing data"
)

// Anomaly is one detector finding routed toward the ticket store.
type Anomaly struct {
	ProjectID int64  `json:"project_id"`
	EventID   int64  `json:"event_id"`
	RecordID  int64  `json:"record_id"`
	FormName  string `json:"form_name"`
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
	Instance  int    `json:"instance"`
	Reason    Reason `json:"reason"`
}

// TicketKey is the unique coordinate of a review ticket. At most one ticket
// may exist per key.
type TicketKey struct {
	ProjectID      int64
	EventID        int64
	RecordID       int64
	FieldName      string
	Instance       int
	AssignedUserID int64
}

// TicketStatus values mirror the store's query_status column.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Ticket is the paired status + resolution entry written for a new finding.
type Ticket struct {
	Key          TicketKey
	Value        string
	Reason       Reason
	AuthorUserID int64
	OpenedAt     time.Time
}

// OpenTicket is a summary row for the overdue digest.
type OpenTicket struct {
	ProjectID      int64
	AssignedUserID int64
	Username       string
	Email          string
	OpenedAt       time.Time
}

// Notification describes one messenger ping to a resolved reviewer.
type Notification struct {
	ProjectID       int64
	ProjectTitle    string
	ChannelName     string
	AuthorUserID    int64
	RecipientUserID int64
	Body            string
	SentAt          time.Time
}

// Outcome reports what Submit did with an anomaly.
type Outcome int

const (
	// OutcomeSpooled means the anomaly was recorded to the spool only
	// (dry-run mode, no store write attempted).
	OutcomeSpooled Outcome = iota
	// OutcomeCreated means a new ticket was written to the store.
	OutcomeCreated
	// OutcomeAlreadyOpen means a ticket already existed at the key.
	OutcomeAlreadyOpen
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyOpen:
		return "already_open"
	default:
		return "spooled"
	}
}
