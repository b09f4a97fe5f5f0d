package api

import (
	"net/http"

	"github.com/inception-project/taskd/internal/api/shared"
)

// EventStreamer streams a user's monitor events to an HTTP client.
type EventStreamer interface {
	ServeSSE(w http.ResponseWriter, r *http.Request, username string)
}

// EventsHandler serves the per-user event stream.
type EventsHandler struct {
	streamer EventStreamer
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(streamer EventStreamer) *EventsHandler {
	return &EventsHandler{streamer: streamer}
}

// Stream handles GET /api/events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	username, ok := shared.GetUsername(r.Context())
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return
	}
	h.streamer.ServeSSE(w, r, username)
}
