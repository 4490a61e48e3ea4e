package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Observability extracts the W3C trace context, stores a request-scoped
// logger in the context, and records one access log line plus the HTTP
// metrics per request. Labels use the chi route pattern, never the raw path.
func Observability(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			// otelhttp sudah extract + buka server span kalau dipasang di luar router
			if !trace.SpanContextFromContext(ctx).IsValid() {
				ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
			}

			fields := []zap.Field{zap.String("request_id", middleware.GetReqID(ctx))}
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}
			log := base.With(fields...)
			ctx = logging.ContextWithLogger(ctx, log)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(float64(elapsed.Milliseconds()))

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
			)
		})
	}
}
