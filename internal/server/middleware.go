// -------------------------------------------------------------------------------
// Middleware - Request IDs, Instrumentation, Auth and Cloud Guard
//
// Author: Alex Freidah
//
// Chain applied to every matched route: request ID assignment, then metrics,
// tracing and the request log line, then optional rate limiting, token auth
// on mutating methods, and finally the guard that rejects secondary-dependent
// paths while the secondary is down.
// -------------------------------------------------------------------------------

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/auth"
	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// -------------------------------------------------------------------------
// REQUEST ID
// -------------------------------------------------------------------------

// requestIDMiddleware reuses a caller-supplied X-Request-ID or assigns a new
// UUID, echoing it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// -------------------------------------------------------------------------
// INSTRUMENTATION
// -------------------------------------------------------------------------

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrumentMiddleware records metrics, opens the request span, logs the
// completed request, and warns on slow requests.
func (s *Server) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		method := r.Method
		route := routeTemplate(r)

		// --- Track inflight requests ---
		telemetry.InflightRequests.WithLabelValues(method).Inc()
		defer telemetry.InflightRequests.WithLabelValues(method).Dec()

		// --- Start tracing span ---
		ctx, span := telemetry.StartSpan(telemetry.ExtractRequestContext(r), fmt.Sprintf("HTTP %s %s", method, route),
			telemetry.RequestAttributes(method, r.URL.Path, route, RequestID(r.Context()), clientIP(r))...,
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		// --- Record metrics ---
		telemetry.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		telemetry.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())

		// --- Update span status ---
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		// --- Log request ---
		logAttrs := []any{
			"method", method, "path", r.URL.Path, "remote", clientIP(r),
			"status", rec.status, "duration", elapsed, "request_id", RequestID(r.Context()),
		}
		switch {
		case rec.status >= http.StatusInternalServerError:
			slog.Error("Request failed", logAttrs...)
		default:
			slog.Info("Request completed", logAttrs...)
		}

		if s.SlowRequestThreshold > 0 && elapsed > s.SlowRequestThreshold {
			telemetry.SlowRequestsTotal.WithLabelValues(method, route).Inc()
			slog.Warn("Slow request", "method", method, "path", r.URL.Path,
				"duration", elapsed, "threshold", s.SlowRequestThreshold)
		}
	})
}

// routeTemplate returns the matched route pattern so metric labels stay
// bounded, falling back to the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// -------------------------------------------------------------------------
// AUTH
// -------------------------------------------------------------------------

// authMiddleware enforces the shared token on mutating methods.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.NeedsAuth(s.AuthConfig) && auth.RequiresAuth(r.Method) {
			if err := auth.Authenticate(r, s.AuthConfig); err != nil {
				slog.Warn("Auth failed", "method", r.Method, "path", r.URL.Path,
					"remote", clientIP(r), "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="records"`)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// -------------------------------------------------------------------------
// CLOUD GUARD
// -------------------------------------------------------------------------

// cloudUnavailableResponse is returned by the guard.
type cloudUnavailableResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// cloudGuardMiddleware rejects any path that depends on the secondary store
// while it is flagged unavailable.
func (s *Server) cloudGuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if needsSecondary(r.URL.Path) && !s.Availability.Available() {
			writeJSON(w, http.StatusServiceUnavailable, cloudUnavailableResponse{
				Error:     msgCloudUnavailable,
				Timestamp: time.Now().UTC(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func needsSecondary(path string) bool {
	return strings.Contains(path, "/sync") || strings.Contains(path, "/cloud")
}
