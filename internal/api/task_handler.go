package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/platform/logger"
	"github.com/inception-project/taskd/internal/task"
)

// DefaultTrigger is recorded on submissions that name no trigger.
const DefaultTrigger = "api"

// Submitter builds and enqueues a task from a request.
type Submitter interface {
	Submit(req task.Request) (task.Task, task.Admission, error)
}

// TaskLister exposes a consistent copy of the scheduler collections.
type TaskLister interface {
	View() task.View
}

// TaskHandler handles task submission and introspection requests.
type TaskHandler struct {
	submitter Submitter
	lister    TaskLister
	emitter   events.EventEmitter
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(submitter Submitter, lister TaskLister, emitter events.EventEmitter) *TaskHandler {
	return &TaskHandler{
		submitter: submitter,
		lister:    lister,
		emitter:   emitter,
	}
}

// SubmitTask handles POST /api/projects/{projectID}/tasks. Accepted
// submissions answer 202 with the admission outcome; a rejected one
// answers 409.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	t, admission, err := h.submitter.Submit(req)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).Debug("task submitted",
		"task_id", t.Handle(),
		"task_kind", req.Kind,
		"project_id", req.Project.ID,
		"admission", admission.String())

	status := http.StatusAccepted
	if admission == task.AdmissionRejected {
		status = http.StatusConflict
	}
	shared.RespondWithJSON(w, r, status, SubmitTaskResponse{
		Task:      t.Monitor().Snapshot(),
		Admission: admission.String(),
	})
}

// RequestTask handles POST /api/projects/{projectID}/task-requests. The
// request is published as a task.request event and answered with 202
// before the task exists; progress arrives on the event stream.
func (h *TaskHandler) RequestTask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	event, err := events.NewEvent(events.TypeTaskRequest, req)
	if err != nil {
		HandleAPIError(w, r, fmt.Errorf("failed to create task request event: %w", err), "")
		return
	}
	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		HandleAPIError(w, r, fmt.Errorf("failed to emit task request event: %w", err), "Failed to request task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, RequestTaskResponse{EventID: event.ID.String()})
}

// decodeTaskRequest reads the caller, the project and the body into a
// task.Request. It writes the error response and returns false on failure.
func decodeTaskRequest(w http.ResponseWriter, r *http.Request) (task.Request, bool) {
	username, ok := shared.GetUsername(r.Context())
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return task.Request{}, false
	}

	projectID, err := projectIDParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return task.Request{}, false
	}

	var body SubmitTaskRequest
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return task.Request{}, false
	}
	if err := shared.ValidateRequest(&body); err != nil {
		HandleAPIError(w, r, err, "")
		return task.Request{}, false
	}

	trigger := body.Trigger
	if trigger == "" {
		trigger = DefaultTrigger
	}
	return task.Request{
		Kind:    body.Kind,
		User:    username,
		Project: task.Project{ID: projectID, Name: body.ProjectName},
		Trigger: trigger,
		Payload: body.Payload,
	}, true
}

// ListMyTasks handles GET /api/tasks, listing the caller's live tasks.
func (h *TaskHandler) ListMyTasks(w http.ResponseWriter, r *http.Request) {
	username, ok := shared.GetUsername(r.Context())
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return
	}

	mine := func(tasks []task.Task) []task.Task {
		var out []task.Task
		for _, t := range tasks {
			if t.User() == username {
				out = append(out, t)
			}
		}
		return out
	}
	view := h.lister.View()
	view = task.View{
		Enqueued:  mine(view.Enqueued),
		Scheduled: mine(view.Scheduled),
		Running:   mine(view.Running),
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: collect(view), Counts: view.Counts()})
}

// ListAllTasks handles GET /api/tasks/all, listing every live task.
func (h *TaskHandler) ListAllTasks(w http.ResponseWriter, r *http.Request) {
	view := h.lister.View()
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:  collect(view),
		Counts: view.Counts(),
	})
}

// collect converts view into responses, enqueued tasks first.
func collect(view task.View) []TaskResponse {
	out := make([]TaskResponse, 0, len(view.Enqueued)+len(view.Scheduled)+len(view.Running))
	add := func(stage string, tasks []task.Task) {
		for _, t := range tasks {
			out = append(out, TaskResponse{Snapshot: t.Monitor().Snapshot(), Stage: stage})
		}
	}
	add(StageEnqueued, view.Enqueued)
	add(StageScheduled, view.Scheduled)
	add(StageRunning, view.Running)
	return out
}

// projectIDParam parses the {projectID} path parameter.
func projectIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "projectID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidProjectID, raw)
	}
	return id, nil
}
