package apiserver

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
)

var tracer = otel.Tracer("auditor-apiserver")

// statusRecorder captures the status code a handler wrote, for metrics and
// access logging, mirroring the teacher's filter chain style
// (internal/server/filters) generalized to a plain net/http handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying ResponseWriter when it supports
// http.Flusher, which the streaming query handler relies on.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withObservability wraps handler with request logging, Prometheus
// metrics, and an OpenTelemetry span, labeled by route.
func withObservability(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, span := tracer.Start(req.Context(), "apiserver."+route, trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.route", route),
		))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		handler(rec, req.WithContext(ctx))

		duration := time.Since(start)
		metrics.ServerRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
		metrics.ServerRequestsTotal.WithLabelValues(route, statusClass(rec.status)).Inc()

		klog.V(3).InfoS("handled request",
			"route", route,
			"method", req.Method,
			"status", rec.status,
			"duration", duration,
		)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
