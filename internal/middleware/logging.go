package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestObserver receives one call per completed request.
type RequestObserver interface {
	ObserveRequest(route string, code int, elapsed time.Duration)
}

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logging returns a middleware that logs every request.
// It logs the method, path, request ID, status and duration, and reports the
// request to observer when one is given.
func Logging(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
				"duration_ms", elapsed.Milliseconds(),
			}

			switch {
			case rec.status >= 500:
				slog.ErrorContext(r.Context(), "Request failed", attrs...)
			case rec.status >= 400:
				slog.WarnContext(r.Context(), "Request rejected", attrs...)
			default:
				slog.InfoContext(r.Context(), "Request completed", attrs...)
			}

			if observer != nil {
				// ServeMux records the matched pattern on r; raw paths would explode label cardinality.
				route := r.Pattern
				if route == "" {
					route = "unmatched"
				}
				observer.ObserveRequest(route, rec.status, elapsed)
			}
		})
	}
}
