package middleware

import (
	"net"
	"net/http"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"go.opentelemetry.io/otel/trace"
)

// RequestID runs after chi's RequestID and binds the id, and the trace id
// when a span is active, to the request logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chiMiddleware.GetReqID(r.Context())
		fields := []any{"request_id", reqID}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			fields = append(fields, "trace_id", sc.TraceID().String())
		}

		w.Header().Set(chiMiddleware.RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(logger.With(r.Context(), fields...)))
	})
}

// ClientIP stores the caller address for rate limiting. It expects chi's
// RealIP to have already rewritten RemoteAddr.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(errors.ContextWithClientIP(r.Context(), ip)))
	})
}
