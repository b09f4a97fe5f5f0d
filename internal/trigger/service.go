package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inception-project/taskd/internal/config"
	"github.com/inception-project/taskd/internal/task"
	"github.com/robfig/cron/v3"
)

// TriggerPrefix prefixes the trigger of every task submitted by a schedule.
const TriggerPrefix = "schedule:"

// ErrUnknownSchedule is returned when a schedule name is not registered.
var ErrUnknownSchedule = errors.New("unknown schedule")

// TaskFactory builds tasks from requests. *task.Registry implements it.
type TaskFactory interface {
	Create(req task.Request) (task.Task, error)
}

// Schedule is a recurring system task.
type Schedule struct {
	Name    string
	Spec    string
	Kind    string
	Project task.Project
	Payload json.RawMessage
}

// SchedulesFromConfig converts configured schedules, encoding each payload
// as JSON.
func SchedulesFromConfig(cfgs []config.ScheduleConfig) ([]Schedule, error) {
	schedules := make([]Schedule, 0, len(cfgs))
	for _, c := range cfgs {
		var payload json.RawMessage
		if len(c.Payload) > 0 {
			b, err := json.Marshal(c.Payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode payload of schedule %q: %w", c.Name, err)
			}
			payload = b
		}
		schedules = append(schedules, Schedule{
			Name:    c.Name,
			Spec:    c.Spec,
			Kind:    c.Kind,
			Project: task.Project{ID: c.ProjectID},
			Payload: payload,
		})
	}
	return schedules, nil
}

// Entry describes a registered schedule.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Kind string    `json:"kind"`
	Next time.Time `json:"next"`
}

type registration struct {
	schedule Schedule
	entryID  cron.EntryID
}

// Service fires registered schedules. Schedules may be added and removed
// while the service runs.
type Service struct {
	mu      sync.Mutex
	cron    *cron.Cron
	parser  cron.Parser
	entries map[string]registration
	running bool

	factory  TaskFactory
	enqueuer task.Enqueuer
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	location *time.Location
}

// WithLocation evaluates cron expressions in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *serviceOptions) { o.location = loc }
}

// New creates a Service submitting tasks built by factory to enqueuer.
func New(factory TaskFactory, enqueuer task.Enqueuer, logger *slog.Logger, opts ...Option) *Service {
	o := serviceOptions{location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}

	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &Service{
		cron:     cron.New(cron.WithParser(parser), cron.WithLocation(o.location)),
		parser:   parser,
		entries:  make(map[string]registration),
		factory:  factory,
		enqueuer: enqueuer,
		logger:   logger.With("component", "trigger_service"),
	}
}

// Add registers s, replacing a schedule with the same name.
func (s *Service) Add(sched Schedule) error {
	if strings.TrimSpace(sched.Name) == "" {
		return errors.New("schedule name required")
	}
	if strings.TrimSpace(sched.Kind) == "" {
		return fmt.Errorf("schedule %q: kind required", sched.Name)
	}

	parsed, err := ParseSchedule(sched.Spec)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", sched.Name, err)
	}

	var cronSchedule cron.Schedule
	switch parsed.Kind {
	case SpecInterval:
		cronSchedule = cron.Every(parsed.Every)
	default:
		cronSchedule, err = s.parser.Parse(parsed.Cron)
		if err != nil {
			return fmt.Errorf("schedule %q: invalid cron expression: %w", sched.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[sched.Name]; ok {
		s.cron.Remove(prev.entryID)
	}
	name := sched.Name
	id := s.cron.Schedule(cronSchedule, cron.FuncJob(func() { s.fire(name) }))
	s.entries[name] = registration{schedule: sched, entryID: id}

	s.logger.Debug("schedule registered",
		"schedule", sched.Name,
		"spec", sched.Spec,
		"task_kind", sched.Kind,
		"project_id", sched.Project.ID)
	return nil
}

// Remove unregisters the named schedule. Tasks it already submitted are
// not affected.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(reg.entryID)
	delete(s.entries, name)
	return true
}

// Entries lists the registered schedules ordered by name. Next is zero
// until the service is started.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, reg := range s.entries {
		out = append(out, Entry{
			Name: name,
			Spec: reg.schedule.Spec,
			Kind: reg.schedule.Kind,
			Next: s.cron.Entry(reg.entryID).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Fire submits the named schedule immediately, outside its timetable.
func (s *Service) Fire(name string) (task.Admission, error) {
	s.mu.Lock()
	reg, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return task.AdmissionRejected, fmt.Errorf("%w: %q", ErrUnknownSchedule, name)
	}
	return s.submit(reg.schedule)
}

// Start begins firing schedules. Calling Start on a running service has
// no effect.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("trigger service started", "schedules", len(s.entries))
}

// Stop stops firing schedules and waits for in-flight submissions until
// ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopped := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn("trigger service stop timed out", "error", ctx.Err())
	}
	s.logger.Info("trigger service stopped")
}

func (s *Service) fire(name string) {
	s.mu.Lock()
	reg, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	if _, err := s.submit(reg.schedule); err != nil {
		s.logger.Error("scheduled submission failed",
			"error", err,
			"schedule", name,
			"task_kind", reg.schedule.Kind)
	}
}

func (s *Service) submit(sched Schedule) (task.Admission, error) {
	t, err := s.factory.Create(task.Request{
		Kind:    sched.Kind,
		Project: sched.Project,
		Trigger: TriggerPrefix + sched.Name,
		Payload: sched.Payload,
	})
	if err != nil {
		return task.AdmissionRejected, fmt.Errorf("failed to create task for schedule %q: %w", sched.Name, err)
	}

	admission := s.enqueuer.Enqueue(t)
	s.logger.Debug("schedule fired",
		"schedule", sched.Name,
		"task_id", t.Handle().ID,
		"task_kind", sched.Kind,
		"admission", admission.String())
	return admission, nil
}
