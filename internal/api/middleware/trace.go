package middleware

import (
	"log/slog"
	"net/http"

	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/platform/logger"
)

// TraceMiddleware gives every request a trace ID and a context logger
// tagged with it. A well-formed X-Trace-ID sent by the client is kept;
// anything else is replaced.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(shared.TraceHeader); shared.ValidTraceID(id) {
			ctx = shared.WithTraceID(ctx, id)
		} else {
			ctx = shared.SetTraceID(ctx)
		}
		traceID := shared.GetTraceID(ctx)

		log := logger.FromContext(ctx).With(slog.String("trace_id", traceID))
		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))

		w.Header().Set(shared.TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(ctx, log)))
	})
}
