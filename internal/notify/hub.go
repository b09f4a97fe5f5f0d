// Package notify pushes task monitor updates to connected clients over
// Server-Sent Events. Clients only receive updates for tasks they own.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/task"
)

// Config controls delivery to clients.
type Config struct {
	// ProgressRate is the number of progress-only updates per second
	// forwarded per task. State changes and task end are always forwarded.
	ProgressRate float64

	// ClientBuffer is the number of messages buffered per connection;
	// messages for a slow client are dropped once it is full.
	ClientBuffer int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		ProgressRate: 4,
		ClientBuffer: 64,
	}
}

// Message is what a client receives for every monitor update.
type Message struct {
	Type    string        `json:"type"`
	Payload task.Snapshot `json:"payload"`
}

// client represents a single SSE connection.
type client struct {
	id uuid.UUID
	ch chan Message
}

// taskState tracks throttling for one task.
type taskState struct {
	limiter *rate.Limiter
	state   task.State
}

// Hub fans monitor events out to the SSE connections of each task's owner.
// It implements events.EventHandler.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	tmu   sync.Mutex
	tasks map[task.Handle]*taskState

	config Config
	logger *slog.Logger
}

// NewHub creates a Hub ready to accept connections.
func NewHub(config Config, logger *slog.Logger) *Hub {
	if config.ProgressRate <= 0 {
		config.ProgressRate = DefaultConfig().ProgressRate
	}
	if config.ClientBuffer <= 0 {
		config.ClientBuffer = DefaultConfig().ClientBuffer
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		tasks:   make(map[task.Handle]*taskState),
		config:  config,
		logger:  logger.With("component", "notify_hub"),
	}
}

// HandleEvent forwards task.update and task.ended events to the owner of
// the task. System tasks have no owner and are not pushed.
func (h *Hub) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeTaskUpdate && event.Type != events.TypeTaskEnded {
		return nil
	}

	var snap task.Snapshot
	if err := event.UnmarshalPayload(&snap); err != nil {
		return fmt.Errorf("failed to unmarshal monitor snapshot: %w", err)
	}
	if snap.User == "" {
		return nil
	}

	if !h.admit(event.Type, snap) {
		return nil
	}
	h.Publish(snap.User, Message{Type: event.Type, Payload: snap})
	return nil
}

// admit applies per-task throttling. Progress-only updates are limited;
// the first update, state changes and the end event always pass. Tracking
// ends with the first terminal snapshot.
func (h *Hub) admit(eventType string, snap task.Snapshot) bool {
	h.tmu.Lock()
	defer h.tmu.Unlock()

	if eventType == events.TypeTaskEnded || snap.State.IsTerminal() {
		delete(h.tasks, snap.Handle)
		return true
	}

	ts, ok := h.tasks[snap.Handle]
	if !ok {
		ts = &taskState{
			limiter: rate.NewLimiter(rate.Limit(h.config.ProgressRate), 1),
			state:   snap.State,
		}
		h.tasks[snap.Handle] = ts
		ts.limiter.Allow()
		return true
	}
	if ts.state != snap.State {
		ts.state = snap.State
		return true
	}
	return ts.limiter.Allow()
}

// Publish sends msg to every connection of username without blocking.
func (h *Hub) Publish(username string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[username] {
		select {
		case c.ch <- msg:
		default:
			h.logger.Debug("dropping message for slow client",
				"user", username,
				"client_id", c.id,
				"task_id", msg.Payload.Handle)
		}
	}
}

// ClientCount returns the number of open connections of username.
func (h *Hub) ClientCount(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[username])
}

func (h *Hub) register(username string) *client {
	c := &client{id: uuid.New(), ch: make(chan Message, h.config.ClientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[username] == nil {
		h.clients[username] = make(map[*client]struct{})
	}
	h.clients[username][c] = struct{}{}
	return c
}

func (h *Hub) unregister(username string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[username], c)
	if len(h.clients[username]) == 0 {
		delete(h.clients, username)
	}
}

// ServeSSE streams the monitor updates of username's tasks until the
// request context is done.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, username string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	c := h.register(username)
	defer h.unregister(username, c)

	h.logger.Debug("client connected", "user", username, "client_id", c.id)

	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", c.id) //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("client disconnected", "user", username, "client_id", c.id)
			return
		case msg := <-c.ch:
			data, err := json.Marshal(msg.Payload)
			if err != nil {
				h.logger.Error("failed to marshal message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data) //nolint:errcheck
			flusher.Flush()
		}
	}
}

var _ events.EventHandler = (*Hub)(nil)
