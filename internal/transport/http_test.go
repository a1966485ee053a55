package transport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/dataqc/internal/domain/sweep"
)

type fakeTrigger struct {
	entries chan sweep.Entry
	cycles  chan struct{}
	release chan struct{}
	drains  chan struct{}
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{
		entries: make(chan sweep.Entry, 8),
		cycles:  make(chan struct{}, 8),
		release: make(chan struct{}),
		drains:  make(chan struct{}, 8),
	}
}

func (f *fakeTrigger) CheckEntry(_ context.Context, e sweep.Entry) error {
	f.entries <- e
	return nil
}

func (f *fakeTrigger) RunCycle(context.Context) error {
	f.cycles <- struct{}{}
	<-f.release
	return nil
}

func (f *fakeTrigger) Resubmit(context.Context) (int, error) {
	f.drains <- struct{}{}
	return 3, nil
}

func newTestServer(t *testing.T, trigger Trigger, allowlist func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(trigger, allowlist, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newFakeTrigger(), nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordTriggerJSON(t *testing.T) {
	trigger := newFakeTrigger()
	srv := newTestServer(t, trigger, nil)

	body := `{"project_id": 1, "event_id": 10, "record_id": 7, "field_name": "hr", "value": "500"}`
	resp, err := http.Post(srv.URL+"/qc/record", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	e := waitFor(t, trigger.entries, "record check")
	assert.Equal(t, int64(1), e.ProjectID)
	assert.Equal(t, "hr", e.FieldName)
	assert.Equal(t, "500", e.Value)
	assert.Equal(t, 1, e.Instance, "instance defaults to 1")
}

func TestRecordTriggerForm(t *testing.T) {
	trigger := newFakeTrigger()
	srv := newTestServer(t, trigger, nil)

	form := "project_id=1&event_id=10&record_id=7&field_name=hr&value=500&instance=2&author_user=jdoe"
	resp, err := http.Post(srv.URL+"/qc/record", "application/x-www-form-urlencoded", strings.NewReader(form))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	e := waitFor(t, trigger.entries, "record check")
	assert.Equal(t, int64(7), e.RecordID)
	assert.Equal(t, 2, e.Instance)
	assert.Equal(t, "jdoe", e.AuthorUser)
}

func TestRecordTriggerBadPayload(t *testing.T) {
	trigger := newFakeTrigger()
	srv := newTestServer(t, trigger, nil)

	resp, err := http.Post(srv.URL+"/qc/record", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutineSingleFlight(t *testing.T) {
	trigger := newFakeTrigger()
	srv := newTestServer(t, trigger, nil)

	resp, err := http.Post(srv.URL+"/qc/routine", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitFor(t, trigger.cycles, "cycle start")

	// A second trigger while the cycle runs is refused
	resp, err = http.Post(srv.URL+"/qc/routine", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(trigger.release)

	// Once the cycle finishes the trigger is accepted again
	require.Eventually(t, func() bool {
		resp, err := http.Post(srv.URL+"/qc/routine", "", nil)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusAccepted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResubmitTrigger(t *testing.T) {
	trigger := newFakeTrigger()
	srv := newTestServer(t, trigger, nil)

	resp, err := http.Post(srv.URL+"/qc/resubmit", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitFor(t, trigger.drains, "spool drain")
}

func TestAllowlistMiddleware(t *testing.T) {
	trigger := newFakeTrigger()
	// httptest clients connect from 127.0.0.1
	allowed := newTestServer(t, trigger, NewAllowlist("127.0.0.1").Middleware)
	denied := newTestServer(t, trigger, NewAllowlist("192.0.2.10").Middleware)

	resp, err := http.Post(allowed.URL+"/qc/resubmit", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitFor(t, trigger.drains, "spool drain")

	resp, err = http.Post(denied.URL+"/qc/resubmit", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Health stays open either way
	resp, err = http.Get(denied.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist")
	content := "# capture platform callback hosts\n10.1.2.3\n\n  10.1.2.4  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	a, err := LoadAllowlist(path)
	require.NoError(t, err)
	assert.True(t, a.ips["10.1.2.3"])
	assert.True(t, a.ips["10.1.2.4"])
	assert.False(t, a.ips["# capture platform callback hosts"])
	assert.Len(t, a.ips, 2)

	_, err = LoadAllowlist(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
