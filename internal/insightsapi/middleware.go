package insightsapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rondohq/rondo/internal/logger"
	"github.com/rondohq/rondo/internal/observability"
)

// RequestLogger creates a middleware that logs the start and end of each request.
// It integrates with slog to provide structured logs including RequestID,
// Method, Path, Status, and Duration, and feeds the HTTP request metrics.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Get RequestID set by Chi's RequestID middleware
		reqID := middleware.GetReqID(r.Context())

		// Create a request-scoped logger and inject it into the context so
		// handlers can call logger.FromContext(ctx).
		reqLogger := slog.Default().With(slog.String("request_id", reqID))
		ctx := logger.WithContext(r.Context(), reqLogger)

		// Wrap the ResponseWriter to capture the status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// Process the request
		next.ServeHTTP(ww, r.WithContext(ctx))

		// Calculate duration
		duration := time.Since(start)
		status := ww.Status()

		// Metrics are labeled with the route PATTERN, not the raw path, to
		// keep cardinality bounded.
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		observability.APIReqDuration.WithLabelValues(r.Method, pattern).Observe(duration.Seconds())
		observability.APIReqTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(status)).Inc()

		// Log the completed request
		// We use Info level for success, Warn for 4xx, Error for 5xx
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		reqLogger.Log(ctx, level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", duration.String(),
			"remote_ip", r.RemoteAddr,
		)
	})
}

// authenticateAPIKey validates the X-API-Key header against the configured
// SHA-256 hash. The comparison is constant time so the key cannot be probed
// byte by byte.
func (a *API) authenticateAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_UNAUTHORIZED",
				Message: "Missing X-API-Key header",
			})
			return
		}

		sum := sha256.Sum256([]byte(key))
		presented := hex.EncodeToString(sum[:])

		if subtle.ConstantTimeCompare([]byte(presented), []byte(a.apiKeyHash)) != 1 {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_UNAUTHORIZED",
				Message: "Invalid API key",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
