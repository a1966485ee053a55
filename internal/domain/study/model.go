package study

// Project describes one capture project under QC.
type Project struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	ResolutionEnabled bool   `json:"resolution_enabled"`
}

// FieldDef is one data dictionary entry. Immutable for the duration of a scan.
type FieldDef struct {
	ProjectID      int64  `json:"project_id"`
	FieldName      string `json:"field_name"`
	FormName       string `json:"form_name"`
	FieldOrder     int    `json:"field_order"`
	ElementType    string `json:"element_type"`
	ValidationType string `json:"validation_type"`
	BranchingLogic string `json:"branching_logic,omitempty"`
	Annotation     string `json:"annotation,omitempty"`
}

// Numeric reports whether the field carries int or float validation.
func (f FieldDef) Numeric() bool {
	switch f.ValidationType {
	case "int", "float":
		return true
	}
	return false
}

// EventForm associates an event/arm with one form visible in it.
type EventForm struct {
	ProjectID int64  `json:"project_id"`
	EventID   int64  `json:"event_id"`
	EventName string `json:"event_name"`
	FormName  string `json:"form_name"`
}

// ExpectedField is a dictionary entry joined onto the event it appears in.
type ExpectedField struct {
	FieldDef
	EventID   int64  `json:"event_id"`
	EventName string `json:"event_name"`
}

// FieldKey identifies a dictionary entry within one event.
type FieldKey struct {
	ProjectID int64
	EventID   int64
	FieldName string
}

// RecordValue is the atomic observed datum. Instance is 1-based; repeating
// forms store one row per instance.
type RecordValue struct {
	ProjectID int64  `json:"project_id"`
	EventID   int64  `json:"event_id"`
	RecordID  int64  `json:"record_id"`
	FieldName string `json:"field_name"`
	Instance  int    `json:"instance"`
	Value     string `json:"value"`
}

// EntryAuthor is one data-entry log row attributed to a user. Used to route
// review tickets back to whoever entered the value.
type EntryAuthor struct {
	ProjectID int64  `json:"project_id"`
	EventID   int64  `json:"event_id"`
	RecordID  int64  `json:"record_id"`
	FormName  string `json:"form_name"`
	FieldName string `json:"field_name"`
	Instance  int    `json:"instance"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

// User is a reviewer resolved for a finding.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
