package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ganot/dataqc/internal/domain/sweep"
)

// Trigger is the coordinator surface the HTTP layer dispatches to.
type Trigger interface {
	CheckEntry(ctx context.Context, e sweep.Entry) error
	RunCycle(ctx context.Context) error
	Resubmit(ctx context.Context) (int, error)
}

// Server wires HTTP handlers. Every trigger acknowledges immediately and
// runs the QC work in the background; outcomes are observable only through
// the ticket store, the spool, and the log.
type Server struct {
	trigger Trigger
	logger  *slog.Logger

	// Guards the full-sweep routine: one cycle at a time.
	routineMu sync.Mutex
}

// NewServer creates an HTTP router with middleware.
func NewServer(trigger Trigger, allowlist func(http.Handler) http.Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	srv := &Server{trigger: trigger, logger: logger.With("component", "http")}

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if allowlist != nil {
			r.Use(allowlist)
		}
		r.Post("/qc/record", srv.handleRecord)
		r.Post("/qc/routine", srv.handleRoutine)
		r.Post("/qc/resubmit", srv.handleResubmit)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	entry, err := parseEntry(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.ack(w)
	go s.run("record check", func(ctx context.Context) error {
		return s.trigger.CheckEntry(ctx, entry)
	})
}

func (s *Server) handleRoutine(w http.ResponseWriter, _ *http.Request) {
	if !s.routineMu.TryLock() {
		http.Error(w, "routine already running", http.StatusConflict)
		return
	}

	s.ack(w)
	go func() {
		defer s.routineMu.Unlock()
		s.run("routine cycle", s.trigger.RunCycle)
	}()
}

func (s *Server) handleResubmit(w http.ResponseWriter, _ *http.Request) {
	s.ack(w)
	go s.run("spool resubmission", func(ctx context.Context) error {
		n, err := s.trigger.Resubmit(ctx)
		if err == nil {
			s.logger.Info("spool resubmission finished", "submitted", n)
		}
		return err
	})
}

func (s *Server) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("accepted"))
}

func (s *Server) run(name string, fn func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("background task panicked", "task", name, "panic", rec)
		}
	}()
	if err := fn(context.Background()); err != nil {
		s.logger.Error("background task failed", "task", name, "error", err)
	}
}

// parseEntry accepts both JSON and form-encoded trigger payloads. The
// instance defaults to 1 when absent.
func parseEntry(r *http.Request) (sweep.Entry, error) {
	var e sweep.Entry

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			return e, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return e, err
		}
		e.ProjectID, _ = strconv.ParseInt(r.PostFormValue("project_id"), 10, 64)
		e.EventID, _ = strconv.ParseInt(r.PostFormValue("event_id"), 10, 64)
		e.RecordID, _ = strconv.ParseInt(r.PostFormValue("record_id"), 10, 64)
		e.FieldName = r.PostFormValue("field_name")
		e.Value = r.PostFormValue("value")
		e.Instance, _ = strconv.Atoi(r.PostFormValue("instance"))
		e.AuthorUser = r.PostFormValue("author_user")
		e.Description = r.PostFormValue("description")
		if ts := r.PostFormValue("timestamp"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				e.Timestamp = t
			}
		}
	}

	if e.Instance < 1 {
		e.Instance = 1
	}
	return e, nil
}
