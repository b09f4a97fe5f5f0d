package task

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// idSequence hands out task ids; ids are unique for the lifetime of the process.
var idSequence atomic.Int64

// Handle is an opaque reference to a task that can be passed to clients
// without exposing the task itself.
type Handle struct {
	ID int64 `json:"id"`
}

// String returns the handle id in decimal form.
func (h Handle) String() string {
	return strconv.FormatInt(h.ID, 10)
}

// Project identifies the project a task works on.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Task is a unit of background work.
//
// Concrete tasks embed *Base, which supplies identity, ownership, the
// monitor and cooperative cancellation, and implement Execute.
// Tasks may additionally implement Matcher to control deduplication.
type Task interface {
	// Execute runs the domain logic. Long running implementations should
	// check ctx or IsCancelled at reasonable intervals.
	Execute(ctx context.Context) error

	Handle() Handle
	User() string
	Project() Project
	Trigger() string
	Parent() Task
	Monitor() *Monitor
	IsReadyToStart() bool
	IsCancelled() bool
	Cancel()

	base() *Base
}

// Option configures a Base.
type Option func(*Base)

// WithUser sets the owning user. Tasks without a user are system tasks.
func WithUser(username string) Option {
	return func(b *Base) {
		b.user = username
	}
}

// WithParent marks the task as a sub-task of parent. Sub-tasks are not
// deduplicated and are not reported independently.
func WithParent(parent Task) Option {
	return func(b *Base) {
		b.parent = parent
	}
}

// WithTitle sets the monitor title. Defaults to the trigger.
func WithTitle(title string) Option {
	return func(b *Base) {
		b.title = title
	}
}

// WithDebounce delays the task's eligibility to run until delay has
// elapsed since construction.
func WithDebounce(delay time.Duration) Option {
	return func(b *Base) {
		b.debounce = delay
	}
}

// withClock replaces the time source; used in tests.
func withClock(now func() time.Time) Option {
	return func(b *Base) {
		b.now = now
	}
}

// Base carries everything a task needs except its domain logic.
type Base struct {
	handle   Handle
	user     string
	project  Project
	trigger  string
	title    string
	parent   Task
	debounce time.Duration
	now      func() time.Time

	runnableAfter time.Time
	monitor       *Monitor

	cancelled atomic.Bool
	wired     atomic.Bool
	started   atomic.Bool

	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// NewBase creates the identity and monitor of a new task. project and
// trigger are required by convention; an empty trigger is allowed but
// makes monitors harder to read.
func NewBase(project Project, trigger string, opts ...Option) *Base {
	b := &Base{
		handle:  Handle{ID: idSequence.Add(1)},
		project: project,
		trigger: trigger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.title == "" {
		b.title = trigger
	}

	created := b.now()
	if b.debounce > 0 {
		b.runnableAfter = created.Add(b.debounce)
	}
	b.monitor = newMonitor(b.handle, b.user, b.project, b.title, created)
	return b
}

func (b *Base) base() *Base { return b }

// Handle returns the task's handle.
func (b *Base) Handle() Handle { return b.handle }

// User returns the owning username, empty for system tasks.
func (b *Base) User() string { return b.user }

// Project returns the owning project.
func (b *Base) Project() Project { return b.project }

// Trigger returns the human readable reason the task was created.
func (b *Base) Trigger() string { return b.trigger }

// Parent returns the parent task, or nil.
func (b *Base) Parent() Task { return b.parent }

// Monitor returns the task's monitor.
func (b *Base) Monitor() *Monitor { return b.monitor }

// RunnableAfter returns the time after which a debounced task becomes
// ready. It is the zero time for tasks without debounce.
func (b *Base) RunnableAfter() time.Time { return b.runnableAfter }

// IsReadyToStart reports whether the debounce delay, if any, has elapsed.
func (b *Base) IsReadyToStart() bool {
	if b.runnableAfter.IsZero() {
		return true
	}
	return b.now().After(b.runnableAfter)
}

// IsCancelled reports whether Cancel was called.
func (b *Base) IsCancelled() bool { return b.cancelled.Load() }

// Cancel requests cooperative cancellation. It does not stop an in-flight
// Execute by itself; it sets the flag and cancels the execution context.
func (b *Base) Cancel() {
	b.cancelled.Store(true)

	b.mu.Lock()
	cancel := b.cancelFunc
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// executionContext derives the context handed to Execute. The returned
// release func must be called once Execute returns.
func (b *Base) executionContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	b.mu.Lock()
	b.cancelFunc = cancel
	b.mu.Unlock()

	if b.cancelled.Load() {
		cancel()
	}
	return ctx, func() {
		b.mu.Lock()
		b.cancelFunc = nil
		b.mu.Unlock()
		cancel()
	}
}

// Kind returns the concrete type name of t, used in logs and events.
func Kind(t Task) string {
	typ := reflect.TypeOf(t)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Name()
}
