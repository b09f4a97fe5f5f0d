package task

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Request describes a task to be created by a Factory.
type Request struct {
	Kind    string          `json:"kind"`
	User    string          `json:"user,omitempty"`
	Project Project         `json:"project"`
	Trigger string          `json:"trigger"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the fields every factory relies on.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Kind) == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidRequest)
	}
	if r.Project.ID <= 0 {
		return fmt.Errorf("%w: project id must be positive", ErrInvalidRequest)
	}
	return nil
}

// Options returns the Base options implied by the request.
func (r Request) Options() []Option {
	var opts []Option
	if r.User != "" {
		opts = append(opts, WithUser(r.User))
	}
	return opts
}

// Factory builds a task from a request.
type Factory func(req Request) (Task, error)

// Registry maps task kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for kind. It panics if kind is empty, factory is
// nil, or kind is already registered.
func (r *Registry) Register(kind string, factory Factory) {
	if kind == "" || factory == nil {
		panic("task: Register requires a kind and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[kind]; dup {
		panic("task: Register called twice for kind " + kind)
	}
	r.factories[kind] = factory
}

// Create validates req and builds the task with the factory for req.Kind.
func (r *Registry) Create(req Request) (Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, ok := r.factories[req.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	t, err := factory(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s task: %w", req.Kind, err)
	}
	return t, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
