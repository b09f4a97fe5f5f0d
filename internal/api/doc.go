// Package api exposes the scheduler over HTTP: task submission and
// introspection, session and project lifecycle hooks, run history and the
// per-user event stream. Handlers translate HTTP concerns to scheduler
// operations and map internal errors to safe client responses.
package api
