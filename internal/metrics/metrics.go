// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/task"
)

const namespace = "taskd"

// CountsSource reports the sizes of the scheduler collections.
type CountsSource interface {
	Counts() task.Counts
}

// Metrics owns a registry with the scheduler collectors. It observes
// admissions as a task.Observer and task ends as an events.EventHandler.
type Metrics struct {
	registry *prometheus.Registry

	admissions *prometheus.CounterVec
	finished   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_admissions_total",
				Help:      "Admission decisions by outcome (rejected | discarded | queued | scheduled).",
			},
			[]string{"outcome", "kind"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_finished_total",
				Help:      "Tasks whose monitor ended, by final state.",
			},
			[]string{"state", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Time from start to end of finished tasks.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.admissions,
		m.finished,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterScheduler adds gauges reading the current collection sizes.
func (m *Metrics) RegisterScheduler(src CountsSource) error {
	gauges := []struct {
		name, help string
		value      func(task.Counts) int
	}{
		{"tasks_enqueued", "Tasks waiting in the scheduler.", func(c task.Counts) int { return c.Enqueued }},
		{"tasks_scheduled", "Tasks handed to the worker pool but not started.", func(c task.Counts) int { return c.Scheduled }},
		{"tasks_running", "Tasks currently executing.", func(c task.Counts) int { return c.Running }},
	}

	for _, g := range gauges {
		value := g.value
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      g.name,
			Help:      g.help,
		}, func() float64 {
			return float64(value(src.Counts()))
		})
		if err := m.registry.Register(gauge); err != nil {
			return fmt.Errorf("failed to register %s gauge: %w", g.name, err)
		}
	}
	return nil
}

// ObserveAdmission implements task.Observer.
func (m *Metrics) ObserveAdmission(t task.Task, a task.Admission) {
	m.admissions.WithLabelValues(a.String(), task.Kind(t)).Inc()
}

// HandleEvent records finished tasks from task.ended events.
func (m *Metrics) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeTaskEnded {
		return nil
	}

	var snap task.Snapshot
	if err := event.UnmarshalPayload(&snap); err != nil {
		return fmt.Errorf("failed to unmarshal monitor snapshot: %w", err)
	}

	m.finished.WithLabelValues(string(snap.State), snap.Kind).Inc()
	if snap.StartTime != nil && snap.EndTime != nil {
		m.duration.WithLabelValues(snap.Kind).Observe(snap.Duration().Seconds())
	}
	return nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var (
	_ task.Observer       = (*Metrics)(nil)
	_ events.EventHandler = (*Metrics)(nil)
)
