package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/platform/postgres"
	"github.com/inception-project/taskd/internal/task"
	"github.com/inception-project/taskd/internal/trigger"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct {
	SubmitFn func(req task.Request) (task.Task, task.Admission, error)
	requests []task.Request
}

func (m *mockSubmitter) Submit(req task.Request) (task.Task, task.Admission, error) {
	m.requests = append(m.requests, req)
	if m.SubmitFn != nil {
		return m.SubmitFn(req)
	}
	return task.NewMockTask(req.Project, req.Trigger, req.Options()...), task.AdmissionQueued, nil
}

type mockLister struct {
	enqueued  []task.Task
	scheduled []task.Task
	running   []task.Task
	views     int
}

func (m *mockLister) View() task.View {
	m.views++
	return task.View{Enqueued: m.enqueued, Scheduled: m.scheduled, Running: m.running}
}

type mockHooks struct {
	sessions []string
	before   []task.Project
	after    []task.Project
	stopped  int
}

func (m *mockHooks) SessionEnded(username string) int {
	m.sessions = append(m.sessions, username)
	return m.stopped
}

func (m *mockHooks) BeforeProjectDelete(project task.Project) int {
	m.before = append(m.before, project)
	return m.stopped
}

func (m *mockHooks) AfterProjectDelete(project task.Project) int {
	m.after = append(m.after, project)
	return m.stopped
}

type mockHistory struct {
	ListByUserFn func(ctx context.Context, username string, limit int) ([]postgres.Run, error)
}

func (m *mockHistory) ListByUser(ctx context.Context, username string, limit int) ([]postgres.Run, error) {
	return m.ListByUserFn(ctx, username, limit)
}

type mockEmitter struct {
	err    error
	events []*events.Event
}

func (m *mockEmitter) EmitEvent(_ context.Context, event *events.Event) error {
	m.events = append(m.events, event)
	return m.err
}

type mockSchedules struct {
	entries []trigger.Entry
	fired   []string
	FireFn  func(name string) (task.Admission, error)
}

func (m *mockSchedules) Entries() []trigger.Entry { return m.entries }

func (m *mockSchedules) Fire(name string) (task.Admission, error) {
	m.fired = append(m.fired, name)
	return m.FireFn(name)
}

type mockStreamer struct {
	username string
}

func (m *mockStreamer) ServeSSE(w http.ResponseWriter, _ *http.Request, username string) {
	m.username = username
	w.WriteHeader(http.StatusOK)
}

// newRequest builds a request authenticated as username (none when empty)
// with the given chi path parameters.
func newRequest(t *testing.T, method, target, username string, body any, params map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)

	ctx := req.Context()
	if username != "" {
		ctx = shared.WithUsername(ctx, username)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
