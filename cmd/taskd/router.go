package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inception-project/taskd/internal/api"
	apiMiddleware "github.com/inception-project/taskd/internal/api/middleware"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	taskHandler := api.NewTaskHandler(app.requests, app.scheduler, app.emitter)
	lifecycleHandler := api.NewLifecycleHandler(app.lifecycle)
	scheduleHandler := api.NewScheduleHandler(app.triggers)
	eventsHandler := api.NewEventsHandler(app.hub)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/projects/{projectID}/tasks", taskHandler.SubmitTask)
		r.Post("/projects/{projectID}/task-requests", taskHandler.RequestTask)
		r.Post("/projects/{projectID}/lifecycle/before-delete", lifecycleHandler.BeforeProjectDelete)
		r.Post("/projects/{projectID}/lifecycle/after-delete", lifecycleHandler.AfterProjectDelete)

		r.Get("/tasks", taskHandler.ListMyTasks)
		r.Get("/tasks/all", taskHandler.ListAllTasks)
		if app.history != nil {
			r.Get("/tasks/history", api.NewHistoryHandler(app.history).ListMyRuns)
		}

		r.Get("/schedules", scheduleHandler.ListSchedules)
		r.Post("/schedules/{name}/fire", scheduleHandler.FireSchedule)

		r.Post("/session/logout", lifecycleHandler.Logout)
		r.Get("/events", eventsHandler.Stream)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}
