package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations runs the migrations directly (for testing and for fresh
// deployments; existing deployments carry the capture platform's schema)
func (db *DB) RunMigrations() error {
	migration := `
-- Capture projects
CREATE TABLE projects (
    project_id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    resolution_enabled INTEGER NOT NULL DEFAULT 0
);

-- Data dictionary
CREATE TABLE field_defs (
    project_id INTEGER NOT NULL,
    field_name TEXT NOT NULL,
    form_name TEXT NOT NULL,
    field_order INTEGER NOT NULL DEFAULT 0,
    element_type TEXT NOT NULL DEFAULT 'text',
    validation_type TEXT NOT NULL DEFAULT '',
    branching_logic TEXT NOT NULL DEFAULT '',
    annotation TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (project_id, field_name),
    FOREIGN KEY (project_id) REFERENCES projects(project_id)
);
CREATE INDEX idx_field_defs_form ON field_defs(project_id, form_name);

-- Event to form mapping
CREATE TABLE event_forms (
    project_id INTEGER NOT NULL,
    event_id INTEGER NOT NULL,
    event_name TEXT NOT NULL,
    form_name TEXT NOT NULL,
    PRIMARY KEY (project_id, event_id, form_name),
    FOREIGN KEY (project_id) REFERENCES projects(project_id)
);

-- Observed record values
CREATE TABLE data_values (
    project_id INTEGER NOT NULL,
    event_id INTEGER NOT NULL,
    record_id INTEGER NOT NULL,
    field_name TEXT NOT NULL,
    instance INTEGER NOT NULL DEFAULT 1,
    value TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_data_values_project ON data_values(project_id);
CREATE INDEX idx_data_values_field ON data_values(project_id, field_name);

-- Data-entry attribution
CREATE TABLE entry_log (
    log_id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    event_id INTEGER NOT NULL,
    record_id INTEGER NOT NULL,
    form_name TEXT NOT NULL,
    field_name TEXT NOT NULL,
    instance INTEGER NOT NULL DEFAULT 1,
    user_id INTEGER NOT NULL,
    logged_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_entry_log_project ON entry_log(project_id);

-- Reviewer accounts
CREATE TABLE users (
    user_id INTEGER PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL
);

-- Fallback reviewer per project/form; form_name '' is the project default
CREATE TABLE default_reviewers (
    project_id INTEGER NOT NULL,
    form_name TEXT NOT NULL DEFAULT '',
    user_id INTEGER NOT NULL,
    PRIMARY KEY (project_id, form_name),
    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

-- Subjects who completed or exited the study
CREATE TABLE completed_records (
    project_id INTEGER NOT NULL,
    record_id INTEGER NOT NULL,
    completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_id, record_id)
);

-- Data-quality tickets: status row plus resolution history
CREATE TABLE ticket_status (
    ticket_id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    event_id INTEGER NOT NULL,
    record_id INTEGER NOT NULL,
    field_name TEXT NOT NULL,
    instance INTEGER NOT NULL DEFAULT 1,
    assigned_user_id INTEGER NOT NULL,
    query_status TEXT NOT NULL CHECK(query_status IN ('OPEN', 'CLOSED')),
    opened_at TIMESTAMP NOT NULL,
    UNIQUE (project_id, event_id, record_id, field_name, instance, assigned_user_id)
);
CREATE INDEX idx_ticket_status_open ON ticket_status(query_status, opened_at);

CREATE TABLE ticket_resolutions (
    resolution_id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id INTEGER NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL,
    author_user_id INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (ticket_id) REFERENCES ticket_status(ticket_id)
);
CREATE INDEX idx_ticket_resolutions_ticket ON ticket_resolutions(ticket_id);

-- Reviewer notification threads
CREATE TABLE message_threads (
    thread_id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    channel_name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_message_threads_project ON message_threads(project_id, channel_name);

CREATE TABLE messages (
    message_id INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id INTEGER NOT NULL,
    author_user_id INTEGER NOT NULL,
    body TEXT NOT NULL,
    sent_at TIMESTAMP NOT NULL,
    FOREIGN KEY (thread_id) REFERENCES message_threads(thread_id)
);

CREATE TABLE message_recipients (
    thread_id INTEGER NOT NULL,
    recipient_user_id INTEGER NOT NULL,
    PRIMARY KEY (thread_id, recipient_user_id),
    FOREIGN KEY (thread_id) REFERENCES message_threads(thread_id)
);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
