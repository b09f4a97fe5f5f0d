package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/task"
	"github.com/inception-project/taskd/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSchedules(t *testing.T) {
	next := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	schedules := &mockSchedules{entries: []trigger.Entry{{Name: "nightly", Spec: "0 3 * * *", Kind: "prune-history", Next: next}}}

	w := httptest.NewRecorder()
	NewScheduleHandler(schedules).ListSchedules(w, newRequest(t, http.MethodGet, "/api/schedules", "alice", nil, nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[ScheduleListResponse](t, w)
	require.Len(t, resp.Schedules, 1)
	assert.Equal(t, "nightly", resp.Schedules[0].Name)
	assert.True(t, next.Equal(resp.Schedules[0].Next))

	w = httptest.NewRecorder()
	NewScheduleHandler(&mockSchedules{}).ListSchedules(w, newRequest(t, http.MethodGet, "/api/schedules", "alice", nil, nil))
	assert.JSONEq(t, `{"schedules":[]}`, w.Body.String())
}

func TestFireSchedule(t *testing.T) {
	tests := []struct {
		name           string
		fire           func(name string) (task.Admission, error)
		expectedStatus int
	}{
		{
			name:           "scheduled",
			fire:           func(string) (task.Admission, error) { return task.AdmissionScheduled, nil },
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "rejected",
			fire:           func(string) (task.Admission, error) { return task.AdmissionRejected, nil },
			expectedStatus: http.StatusConflict,
		},
		{
			name: "unknown",
			fire: func(name string) (task.Admission, error) {
				return task.AdmissionRejected, fmt.Errorf("%w: %q", trigger.ErrUnknownSchedule, name)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			schedules := &mockSchedules{FireFn: tc.fire}
			w := httptest.NewRecorder()
			NewScheduleHandler(schedules).FireSchedule(w, newRequest(t, http.MethodPost,
				"/api/schedules/nightly/fire", "alice", nil, map[string]string{"name": "nightly"}))

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Equal(t, []string{"nightly"}, schedules.fired)
			if tc.expectedStatus == http.StatusNotFound {
				assert.Equal(t, "Schedule not found", decodeBody[shared.ErrorResponse](t, w).Error)
				return
			}
			assert.Equal(t, "nightly", decodeBody[FireResponse](t, w).Schedule)
		})
	}
}
