package api

import (
	"encoding/json"

	"github.com/inception-project/taskd/internal/platform/postgres"
	"github.com/inception-project/taskd/internal/task"
)

// Scheduler stages reported for live tasks.
const (
	StageEnqueued  = "enqueued"
	StageScheduled = "scheduled"
	StageRunning   = "running"
)

// SubmitTaskRequest is the body of POST /api/projects/{projectID}/tasks.
type SubmitTaskRequest struct {
	Kind        string          `json:"kind" validate:"required,max=64"`
	ProjectName string          `json:"project_name" validate:"max=256"`
	Trigger     string          `json:"trigger" validate:"max=256"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// TaskResponse describes a live task and the stage it is in.
type TaskResponse struct {
	task.Snapshot
	Stage string `json:"stage"`
}

// SubmitTaskResponse is returned for an accepted submission.
type SubmitTaskResponse struct {
	Task      task.Snapshot `json:"task"`
	Admission string        `json:"admission"`
}

// RequestTaskResponse identifies a published task request.
type RequestTaskResponse struct {
	EventID string `json:"event_id"`
}

// TaskListResponse lists live tasks.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Counts task.Counts    `json:"counts"`
}

// StoppedResponse reports how many pending tasks a lifecycle hook stopped.
type StoppedResponse struct {
	Stopped int `json:"stopped"`
}

// RunListResponse lists finished runs, most recent first.
type RunListResponse struct {
	Runs []postgres.Run `json:"runs"`
}
