package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inception-project/taskd/internal/api"
	"github.com/inception-project/taskd/internal/config"
	"github.com/inception-project/taskd/internal/service/auth"
	"github.com/inception-project/taskd/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeout: time.Second},
		Scheduler: config.SchedulerConfig{
			Workers:       2,
			QueueSize:     10,
			SweepInterval: 10 * time.Millisecond,
		},
		Notify: config.NotifyConfig{ProgressRate: 100, ClientBuffer: 16},
		Auth:   config.AuthConfig{JWTSecret: strings.Repeat("s", 32), TokenLifetime: time.Hour},
		Schedules: []config.ScheduleConfig{{
			Name:      "heartbeat",
			Spec:      "@every 1h",
			Kind:      "progress",
			ProjectID: 1,
			Payload:   map[string]any{"steps": 1, "step_delay": "1ms"},
		}},
	}
}

// newTestApp wires an application without a database. Every bearer token
// authenticates as alice.
func newTestApp(t *testing.T) *application {
	t.Helper()
	app := &application{
		config:     testConfig(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		jwtService: auth.NewMockJWTService("alice"),
	}
	require.NoError(t, app.wire())
	app.scheduler.Start()
	t.Cleanup(app.cleanup)
	return app
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskd_tasks_enqueued")
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	router := newTestApp(t).setupRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_HistoryDisabledWithoutDatabase(t *testing.T) {
	router := newTestApp(t).setupRouter()

	w := doRequest(t, router, http.MethodGet, "/api/tasks/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SubmitAndComplete(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/projects/3/tasks",
		`{"kind":"progress","project_name":"corpus","payload":{"steps":2,"step_delay":"1ms"}}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp api.SubmitTaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Task.User)
	assert.Equal(t, int64(3), resp.Task.Project.ID)

	assert.Eventually(t, func() bool {
		return len(app.scheduler.AllTasks()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	w = doRequest(t, router, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tasks":[]`)
}

func TestRouter_RequestEventReachesScheduler(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/projects/3/task-requests",
		`{"kind":"progress","payload":{"debounce":"1h"}}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	enqueued := app.scheduler.EnqueuedTasks()
	require.Len(t, enqueued, 1)
	assert.Equal(t, "alice", enqueued[0].User())
	assert.Equal(t, int64(3), enqueued[0].Project().ID)
}

func TestRouter_LogoutStopsPendingTasks(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()

	delayed := task.NewMockTask(task.Project{ID: 5}, "test", task.WithUser("alice"), task.WithDebounce(time.Hour))
	require.Equal(t, task.AdmissionQueued, app.scheduler.Enqueue(delayed))

	w := doRequest(t, router, http.MethodPost, "/api/session/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":1}`, w.Body.String())
	assert.True(t, delayed.IsCancelled())
}

func TestRouter_Schedules(t *testing.T) {
	router := newTestApp(t).setupRouter()

	w := doRequest(t, router, http.MethodGet, "/api/schedules", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"heartbeat"`)

	w = doRequest(t, router, http.MethodPost, "/api/schedules/heartbeat/fire", "")
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = doRequest(t, router, http.MethodPost, "/api/schedules/missing/fire", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
