package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/task"
	"github.com/inception-project/taskd/internal/trigger"
)

// ScheduleService lists and fires recurring schedules.
type ScheduleService interface {
	Entries() []trigger.Entry
	Fire(name string) (task.Admission, error)
}

// ScheduleListResponse lists the registered schedules.
type ScheduleListResponse struct {
	Schedules []trigger.Entry `json:"schedules"`
}

// FireResponse reports the admission of a manually fired schedule.
type FireResponse struct {
	Schedule  string `json:"schedule"`
	Admission string `json:"admission"`
}

// ScheduleHandler exposes the recurring triggers.
type ScheduleHandler struct {
	schedules ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(schedules ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// ListSchedules handles GET /api/schedules.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	entries := h.schedules.Entries()
	if entries == nil {
		entries = []trigger.Entry{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ScheduleListResponse{Schedules: entries})
}

// FireSchedule handles POST /api/schedules/{name}/fire, submitting the
// schedule's task immediately.
func (h *ScheduleHandler) FireSchedule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	admission, err := h.schedules.Fire(name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status := http.StatusAccepted
	if admission == task.AdmissionRejected {
		status = http.StatusConflict
	}
	shared.RespondWithJSON(w, r, status, FireResponse{Schedule: name, Admission: admission.String()})
}
