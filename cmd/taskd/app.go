package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/inception-project/taskd/internal/config"
	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/kinds"
	"github.com/inception-project/taskd/internal/lifecycle"
	"github.com/inception-project/taskd/internal/metrics"
	"github.com/inception-project/taskd/internal/notify"
	"github.com/inception-project/taskd/internal/platform/postgres"
	"github.com/inception-project/taskd/internal/service/auth"
	"github.com/inception-project/taskd/internal/task"
	"github.com/inception-project/taskd/internal/trigger"
)

// application holds the shared dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// nil when run history is disabled
	db      *sql.DB
	history *postgres.HistoryStore

	jwtService auth.JWTService
	emitter    *events.InMemoryEventEmitter
	hub        *notify.Hub
	metrics    *metrics.Metrics
	lifecycle  *lifecycle.Manager
	registry   *task.Registry
	scheduler  *task.Scheduler
	requests   *task.FactoryEventHandler
	triggers   *trigger.Service
}

// newApplication wires every component. The database is optional: without
// database.url the scheduler runs without run history.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	if cfg.Database.URL != "" {
		app.db, err = postgres.Open(ctx, cfg.Database.URL, postgres.DefaultPoolConfig(), logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, app.db, logger); err != nil {
			app.cleanup()
			return nil, err
		}
		app.history = postgres.NewHistoryStore(app.db, logger)
	}

	if err := app.wire(); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// wire builds the in-process components on top of the optional history
// store.
func (app *application) wire() error {
	cfg, logger := app.config, app.logger

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.hub = notify.NewHub(notify.Config{
		ProgressRate: cfg.Notify.ProgressRate,
		ClientBuffer: cfg.Notify.ClientBuffer,
	}, logger)
	app.metrics = metrics.New()
	app.lifecycle = lifecycle.NewManager(logger)
	app.registry = task.NewRegistry()
	kinds.Register(app.registry)

	wiring := &kinds.Wiring{}
	if app.history != nil {
		wiring.History = app.history
	}

	app.scheduler = task.NewScheduler(task.SchedulerConfig{
		WorkerCount:   cfg.Scheduler.Workers,
		QueueSize:     cfg.Scheduler.QueueSize,
		SweepInterval: cfg.Scheduler.SweepInterval,
	}, logger,
		task.WithNotifier(task.NewEventNotifier(app.emitter, logger)),
		task.WithProjectGuard(app.lifecycle),
		task.WithAutowirer(wiring),
		task.WithObserver(app.metrics),
	)
	wiring.Executor = app.scheduler
	app.lifecycle.SetStopper(app.scheduler)

	if err := app.metrics.RegisterScheduler(app.scheduler); err != nil {
		return fmt.Errorf("failed to register scheduler metrics: %w", err)
	}

	app.requests = task.NewFactoryEventHandler(app.registry, app.scheduler, logger)
	app.emitter.RegisterHandler(app.hub, events.TypeTaskUpdate, events.TypeTaskEnded)
	app.emitter.RegisterHandler(app.metrics, events.TypeTaskEnded)
	app.emitter.RegisterHandler(app.requests, events.TypeTaskRequest)
	if app.history != nil {
		app.emitter.RegisterHandler(
			postgres.NewHistoryRecorder(app.history, 0, logger),
			events.TypeTaskEnded)
	}

	schedules, err := trigger.SchedulesFromConfig(cfg.Schedules)
	if err != nil {
		return fmt.Errorf("failed to read schedules: %w", err)
	}
	app.triggers = trigger.New(app.registry, app.scheduler, logger)
	for _, sched := range schedules {
		if err := app.triggers.Add(sched); err != nil {
			return fmt.Errorf("failed to add schedule %q: %w", sched.Name, err)
		}
	}
	return nil
}

// Run starts the scheduler and the triggers and serves HTTP until ctx is
// done.
func (app *application) Run(ctx context.Context) error {
	app.scheduler.Start()
	app.triggers.Start()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the triggers before the scheduler so no submission races
// its shutdown, then closes the database.
func (app *application) cleanup() {
	if app.triggers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		app.triggers.Stop(ctx)
		cancel()
	}
	if app.scheduler != nil {
		app.scheduler.Destroy()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
