package task

import "errors"

// Common errors returned by the task package
var (
	ErrPoolClosed     = errors.New("worker pool is closed")
	ErrPoolFull       = errors.New("worker pool queue is full")
	ErrTaskPanicked   = errors.New("task panicked")
	ErrUnknownKind    = errors.New("unknown task kind")
	ErrInvalidRequest = errors.New("invalid task request")
	ErrAutowire       = errors.New("failed to autowire task")
)
