package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// WorkerCount determines how many tasks run in parallel
	WorkerCount int

	// QueueSize bounds the worker pool's queue of scheduled tasks
	QueueSize int

	// SweepInterval defines how often enqueued tasks are re-examined
	// If zero, defaults to one second
	SweepInterval time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WorkerCount:   4,
		QueueSize:     100,
		SweepInterval: time.Second,
	}
}

// Admission is the outcome of Enqueue.
type Admission int

const (
	// AdmissionRejected means the task was dropped without comparison,
	// e.g. because its project is being deleted or the scheduler is gone.
	AdmissionRejected Admission = iota
	// AdmissionDiscarded means an equivalent enqueued task already covers it.
	AdmissionDiscarded
	// AdmissionQueued means the task waits in the enqueued collection.
	AdmissionQueued
	// AdmissionScheduled means the task was handed to the worker pool.
	AdmissionScheduled
)

// String implements fmt.Stringer.
func (a Admission) String() string {
	switch a {
	case AdmissionRejected:
		return "rejected"
	case AdmissionDiscarded:
		return "discarded"
	case AdmissionQueued:
		return "queued"
	case AdmissionScheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// ProjectGuard reports projects that must not receive new work.
type ProjectGuard interface {
	IsPendingDeletion(p Project) bool
}

// Autowirer attaches the collaborators a task needs before its first
// execution. It is called once per task while the scheduler lock is held
// and must not call back into the scheduler.
type Autowirer interface {
	Autowire(ctx context.Context, t Task) error
}

// AutowireFunc adapts a function to Autowirer.
type AutowireFunc func(ctx context.Context, t Task) error

// Autowire implements Autowirer.
func (f AutowireFunc) Autowire(ctx context.Context, t Task) error { return f(ctx, t) }

// Observer is notified of admission decisions.
type Observer interface {
	ObserveAdmission(t Task, a Admission)
}

// Counts holds the sizes of the scheduler collections.
type Counts struct {
	Enqueued  int `json:"enqueued"`
	Scheduled int `json:"scheduled"`
	Running   int `json:"running"`
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithNotifier sets the notifier attached to every admitted task's monitor.
func WithNotifier(n Notifier) SchedulerOption {
	return func(s *Scheduler) { s.notifier = n }
}

// WithProjectGuard sets the source of pending project deletions.
func WithProjectGuard(g ProjectGuard) SchedulerOption {
	return func(s *Scheduler) { s.projects = g }
}

// WithAutowirer sets the autowirer run before a task's first execution.
func WithAutowirer(a Autowirer) SchedulerOption {
	return func(s *Scheduler) { s.autowirer = a }
}

// WithObserver sets the admission observer.
func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) { s.observer = o }
}

// Scheduler admits tasks, keeps equivalent tasks from running in
// parallel and hands eligible tasks to a bounded worker pool.
//
// Tasks move Enqueued -> Scheduled -> Running. All three collections are
// guarded by one lock so admission, sweeps and completion bookkeeping
// never interleave.
type Scheduler struct {
	mu        sync.Mutex
	enqueued  []Task
	scheduled []Task
	running   []Task
	destroyed bool

	pool   *WorkerPool[Task]
	config SchedulerConfig

	notifier  Notifier
	projects  ProjectGuard
	autowirer Autowirer
	observer  Observer

	// startOnce is also consumed by Destroy so a destroyed scheduler
	// cannot be started.
	startOnce sync.Once
	stopSweep chan struct{}
	sweepDone chan struct{}

	logger *slog.Logger
}

// retired is a task leaving the scheduler without running.
type retired struct {
	task  Task
	state State
	msg   *LogMessage
}

// NewScheduler creates a new Scheduler. Call Start to begin processing.
func NewScheduler(config SchedulerConfig, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Second
	}

	s := &Scheduler{
		config:    config,
		notifier:  BlindNotifier{},
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
		logger:    logger.With("component", "task_scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pool = NewWorkerPool(WorkerPoolConfig{
		WorkerCount: config.WorkerCount,
		QueueSize:   config.QueueSize,
	}, execute, logger)
	s.pool.SetHooks(Hooks[Task]{
		BeforeExecute: s.beforeExecute,
		AfterExecute:  s.afterExecute,
	})
	return s
}

// Start launches the worker pool and the periodic sweep.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.pool.Start()
		go s.sweepLoop()
		s.logger.Info("task scheduler started",
			"worker_count", s.config.WorkerCount,
			"queue_size", s.config.QueueSize,
			"sweep_interval", s.config.SweepInterval)
	})
}

// Enqueue submits t for execution. The decision is made atomically with
// respect to other admissions, sweeps and completions; Enqueue never
// blocks on the worker pool.
func (s *Scheduler) Enqueue(t Task) Admission {
	if t == nil {
		return AdmissionRejected
	}

	s.mu.Lock()
	admission, retire := s.admitLocked(t)
	s.mu.Unlock()

	s.retire(retire)
	if s.observer != nil {
		s.observer.ObserveAdmission(t, admission)
	}

	s.logger.Debug("task admission",
		"task_id", t.Handle(),
		"task_kind", Kind(t),
		"user", t.User(),
		"project_id", t.Project().ID,
		"trigger", t.Trigger(),
		"admission", admission.String())
	return admission
}

func (s *Scheduler) admitLocked(t Task) (Admission, []retired) {
	if s.destroyed {
		return AdmissionRejected, []retired{{task: t, state: StateCancelled}}
	}
	// The same instance is admitted at most once; its monitor belongs to
	// the earlier admission or execution and is left untouched.
	if t.base().started.Load() || s.containsLocked(t) {
		return AdmissionRejected, nil
	}
	if s.projects != nil && s.projects.IsPendingDeletion(t.Project()) {
		return AdmissionRejected, []retired{{task: t, state: StateCancelled}}
	}

	var superseded []Task
	for _, existing := range s.enqueued {
		switch Match(t, existing) {
		case DiscardOrQueueThis:
			return AdmissionDiscarded, []retired{{task: t, state: StateCancelled}}
		case UnqueueExistingAndQueueThis:
			superseded = append(superseded, existing)
		}
	}

	var retire []retired
	if len(superseded) > 0 {
		s.enqueued = removeTasks(s.enqueued, superseded...)
		for _, old := range superseded {
			retire = append(retire, retired{task: old, state: StateCancelled})
		}
	}

	s.attach(t)

	if s.collidesLocked(t) || !t.IsReadyToStart() {
		s.enqueued = append(s.enqueued, t)
		return AdmissionQueued, retire
	}

	switch ok, r := s.handOffLocked(t); {
	case ok:
		return AdmissionScheduled, retire
	case r != nil:
		return AdmissionRejected, append(retire, *r)
	default:
		s.enqueued = append(s.enqueued, t)
		return AdmissionQueued, retire
	}
}

// handOffLocked passes t to the pool. It returns false with a nil retired
// entry when the pool has no room, in which case t stays enqueued.
func (s *Scheduler) handOffLocked(t Task) (bool, *retired) {
	b := t.base()
	if s.autowirer != nil && b.wired.CompareAndSwap(false, true) {
		if err := s.autowirer.Autowire(context.Background(), t); err != nil {
			s.logger.Error("failed to autowire task",
				"task_id", t.Handle(),
				"task_kind", Kind(t),
				"error", err)
			msg := Error(fmt.Errorf("%w: %v", ErrAutowire, err).Error())
			return false, &retired{task: t, state: StateFailed, msg: &msg}
		}
	}

	if err := s.pool.TrySubmit(t); err != nil {
		if errors.Is(err, ErrPoolClosed) {
			return false, &retired{task: t, state: StateCancelled}
		}
		s.logger.Debug("worker pool full, keeping task enqueued",
			"task_id", t.Handle(),
			"task_kind", Kind(t))
		return false, nil
	}
	s.scheduled = append(s.scheduled, t)
	return true, nil
}

func (s *Scheduler) containsLocked(t Task) bool {
	return containsTask(s.enqueued, t) || containsTask(s.scheduled, t) || containsTask(s.running, t)
}

func (s *Scheduler) collidesLocked(t Task) bool {
	for _, other := range s.scheduled {
		if Match(t, other) != NoMatch {
			return true
		}
	}
	for _, other := range s.running {
		if Match(t, other) != NoMatch {
			return true
		}
	}
	return false
}

// sweepLocked promotes ready, collision-free enqueued tasks in FIFO order.
// Promotion stops at the first task the pool has no room for so later
// tasks cannot overtake it.
func (s *Scheduler) sweepLocked() []retired {
	if s.destroyed || len(s.enqueued) == 0 {
		return nil
	}

	var retire []retired
	kept := make([]Task, 0, len(s.enqueued))
	blocked := false
	for _, t := range s.enqueued {
		if t.base().started.Load() {
			// already run through ExecuteSync
			continue
		}
		if blocked || !t.IsReadyToStart() || s.collidesLocked(t) {
			kept = append(kept, t)
			continue
		}
		ok, r := s.handOffLocked(t)
		switch {
		case ok:
		case r != nil:
			retire = append(retire, *r)
		default:
			blocked = true
			kept = append(kept, t)
		}
	}
	s.enqueued = kept
	return retire
}

// Sweep runs one promotion pass immediately.
func (s *Scheduler) Sweep() {
	s.mu.Lock()
	retire := s.sweepLocked()
	s.mu.Unlock()
	s.retire(retire)
}

func (s *Scheduler) sweepLoop() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Scheduler) beforeExecute(workerID int, t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || !containsTask(s.scheduled, t) {
		// stopped after the worker dequeued it; execute sees the cancel flag
		return
	}
	s.scheduled = removeTasks(s.scheduled, t)
	s.running = append(s.running, t)
	s.logger.Debug("task started",
		"task_id", t.Handle(),
		"task_kind", Kind(t),
		"worker_id", workerID)
}

func (s *Scheduler) afterExecute(t Task, err error) {
	switch {
	case err == nil:
	case t.IsCancelled() && errors.Is(err, context.Canceled):
		s.logger.Debug("task cancelled",
			"task_id", t.Handle(),
			"task_kind", Kind(t))
	default:
		s.logger.Error("task execution failed",
			"task_id", t.Handle(),
			"task_kind", Kind(t),
			"user", t.User(),
			"project_id", t.Project().ID,
			"error", err)
	}

	s.mu.Lock()
	s.running = removeTasks(s.running, t)
	retire := s.sweepLocked()
	s.mu.Unlock()

	s.retire(retire)
}

// ExecuteSync runs t on the calling goroutine, bypassing queueing and
// deduplication, and returns the error from Execute.
func (s *Scheduler) ExecuteSync(ctx context.Context, t Task) error {
	s.attach(t)
	b := t.base()
	if s.autowirer != nil && b.wired.CompareAndSwap(false, true) {
		if err := s.autowirer.Autowire(ctx, t); err != nil {
			err = fmt.Errorf("%w: %v", ErrAutowire, err)
			s.retire([]retired{{task: t, state: StateFailed, msg: ptr(Error(err.Error()))}})
			return err
		}
	}
	return execute(ctx, t)
}

// StopAllTasksMatching removes every task matching match that has not yet
// started: enqueued tasks, tasks in the pool's queue and tasks a worker has
// dequeued but not begun. Running tasks are not interrupted. Returns the
// number of tasks removed.
func (s *Scheduler) StopAllTasksMatching(match func(Task) bool) int {
	s.mu.Lock()
	var removed []Task
	kept := s.enqueued[:0]
	for _, t := range s.enqueued {
		if match(t) {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	clear(s.enqueued[len(kept):])
	s.enqueued = kept

	// Everything still in scheduled has not reached beforeExecute, whether
	// it sits in the pool's queue or was just dequeued by a worker.
	for _, t := range s.pool.Remove(match) {
		if !containsTask(s.scheduled, t) {
			removed = append(removed, t)
		}
	}
	keptScheduled := s.scheduled[:0]
	for _, t := range s.scheduled {
		if match(t) {
			removed = append(removed, t)
			continue
		}
		keptScheduled = append(keptScheduled, t)
	}
	clear(s.scheduled[len(keptScheduled):])
	s.scheduled = keptScheduled

	// Cancelled before the lock is released so a worker holding one of
	// these tasks cannot start it.
	for _, t := range removed {
		t.Cancel()
	}
	s.mu.Unlock()

	retire := make([]retired, 0, len(removed))
	for _, t := range removed {
		retire = append(retire, retired{task: t, state: StateCancelled})
	}
	s.retire(retire)

	if len(removed) > 0 {
		s.logger.Info("stopped pending tasks", "count", len(removed))
	}
	return len(removed)
}

// StopAllTasksForUser stops all pending tasks owned by username.
func (s *Scheduler) StopAllTasksForUser(username string) int {
	return s.StopAllTasksMatching(func(t Task) bool {
		return t.User() == username
	})
}

// StopAllTasksForProject stops all pending tasks of project.
func (s *Scheduler) StopAllTasksForProject(project Project) int {
	return s.StopAllTasksMatching(func(t Task) bool {
		return t.Project().ID == project.ID
	})
}

// EnqueuedTasks returns a snapshot of the enqueued tasks in FIFO order.
func (s *Scheduler) EnqueuedTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.enqueued...)
}

// ScheduledTasks returns a snapshot of tasks handed to the pool but not
// yet started.
func (s *Scheduler) ScheduledTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.scheduled...)
}

// RunningTasks returns a snapshot of the running tasks.
func (s *Scheduler) RunningTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.running...)
}

// ScheduledAndRunningTasks returns scheduled tasks followed by running tasks.
func (s *Scheduler) ScheduledAndRunningTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Task, 0, len(s.scheduled)+len(s.running))
	all = append(all, s.scheduled...)
	return append(all, s.running...)
}

// AllTasks returns enqueued, scheduled and running tasks.
func (s *Scheduler) AllTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Task, 0, len(s.enqueued)+len(s.scheduled)+len(s.running))
	all = append(all, s.enqueued...)
	all = append(all, s.scheduled...)
	return append(all, s.running...)
}

// View is a copy of the three collections taken under one lock, so a task
// moving between them appears exactly once.
type View struct {
	Enqueued  []Task
	Scheduled []Task
	Running   []Task
}

// Counts returns the sizes of the collections in v.
func (v View) Counts() Counts {
	return Counts{
		Enqueued:  len(v.Enqueued),
		Scheduled: len(v.Scheduled),
		Running:   len(v.Running),
	}
}

// View returns a consistent copy of the enqueued, scheduled and running
// collections.
func (s *Scheduler) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Enqueued:  append([]Task(nil), s.enqueued...),
		Scheduled: append([]Task(nil), s.scheduled...),
		Running:   append([]Task(nil), s.running...),
	}
}

// Counts returns the sizes of the three collections.
func (s *Scheduler) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Enqueued:  len(s.enqueued),
		Scheduled: len(s.scheduled),
		Running:   len(s.running),
	}
}

// Destroy clears all collections, stops the sweep and shuts the pool down
// without waiting for running tasks. Tasks that never started are
// cancelled. Calling Destroy again, or any operation afterwards, is a
// no-op.
func (s *Scheduler) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	pending := s.enqueued
	s.enqueued = nil
	s.scheduled = nil
	s.running = nil
	close(s.stopSweep)
	s.mu.Unlock()

	pending = append(pending, s.pool.Shutdown()...)

	// A scheduler that was never started has no sweep loop to wait for.
	s.startOnce.Do(func() { close(s.sweepDone) })
	<-s.sweepDone

	retire := make([]retired, 0, len(pending))
	for _, t := range pending {
		retire = append(retire, retired{task: t, state: StateCancelled})
	}
	s.retire(retire)

	s.logger.Info("task scheduler destroyed", "cancelled_count", len(pending))
}

// attach binds the scheduler's notifier to t's monitor. Sub-tasks stay
// blind so they are only reported through their parent.
func (s *Scheduler) attach(t Task) {
	var n Notifier = s.notifier
	if t.Parent() != nil {
		n = BlindNotifier{}
	}
	t.Monitor().attach(n, Kind(t))
}

// retire ends the monitors of tasks leaving without running. Must be
// called without holding the lock since notifiers may block.
func (s *Scheduler) retire(tasks []retired) {
	for _, r := range tasks {
		r.task.Cancel()
		m := r.task.Monitor()
		if r.msg != nil {
			m.AddMessage(*r.msg)
		}
		m.SetState(r.state)
		m.Destroy()
	}
}

func removeTasks(tasks []Task, remove ...Task) []Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if !containsTask(remove, t) {
			kept = append(kept, t)
		}
	}
	clear(tasks[len(kept):])
	return kept
}

func containsTask(tasks []Task, t Task) bool {
	for _, other := range tasks {
		if other.Handle() == t.Handle() {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
