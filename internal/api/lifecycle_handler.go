package api

import (
	"net/http"

	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/task"
)

// LifecycleHooks receives session and project lifecycle events.
type LifecycleHooks interface {
	SessionEnded(username string) int
	BeforeProjectDelete(project task.Project) int
	AfterProjectDelete(project task.Project) int
}

// LifecycleHandler turns lifecycle notifications from the owning
// application into scheduler stop sweeps.
type LifecycleHandler struct {
	hooks LifecycleHooks
}

// NewLifecycleHandler creates a new LifecycleHandler
func NewLifecycleHandler(hooks LifecycleHooks) *LifecycleHandler {
	return &LifecycleHandler{hooks: hooks}
}

// Logout handles POST /api/session/logout: the caller's pending tasks are
// stopped, running ones finish.
func (h *LifecycleHandler) Logout(w http.ResponseWriter, r *http.Request) {
	username, ok := shared.GetUsername(r.Context())
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return
	}
	stopped := h.hooks.SessionEnded(username)
	shared.RespondWithJSON(w, r, http.StatusOK, StoppedResponse{Stopped: stopped})
}

// BeforeProjectDelete handles
// POST /api/projects/{projectID}/lifecycle/before-delete.
func (h *LifecycleHandler) BeforeProjectDelete(w http.ResponseWriter, r *http.Request) {
	h.projectHook(w, r, h.hooks.BeforeProjectDelete)
}

// AfterProjectDelete handles
// POST /api/projects/{projectID}/lifecycle/after-delete.
func (h *LifecycleHandler) AfterProjectDelete(w http.ResponseWriter, r *http.Request) {
	h.projectHook(w, r, h.hooks.AfterProjectDelete)
}

func (h *LifecycleHandler) projectHook(w http.ResponseWriter, r *http.Request, hook func(task.Project) int) {
	projectID, err := projectIDParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	stopped := hook(task.Project{ID: projectID, Name: r.URL.Query().Get("name")})
	shared.RespondWithJSON(w, r, http.StatusOK, StoppedResponse{Stopped: stopped})
}
