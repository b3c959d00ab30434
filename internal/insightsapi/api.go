// Package insightsapi implements the REST API for the Rondo insights engine.
// It handles HTTP routing, request decoding, validation, and response formatting.
package insightsapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/routing"
)

// ReportEngine is the insights surface the API consumes. We use the
// interface type to allow for mocking in unit tests.
type ReportEngine interface {
	// VirtualQueueReport computes the virtual queue report for one form
	// from the perspective of one user. A nil report with a nil error
	// means the feature is not configured for that user.
	VirtualQueueReport(ctx context.Context, userID int64, formID string) (*insights.Report, error)

	// MatchPreview evaluates one route of a form against a hand-crafted
	// response without touching any booking state.
	MatchPreview(ctx context.Context, formID, routeID string, response routing.FormResponse) (*insights.Preview, error)
}

// API is the main struct that holds dependencies and the router for the
// insights read path. It follows the Dependency Injection pattern to
// facilitate testing.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	// engine computes reports and previews.
	engine ReportEngine

	// apiKeyHash is the SHA-256 hash of the valid API key.
	// Used for authentication in production environments.
	apiKeyHash string

	// skipAuth disables authentication when true (test/dev environments only).
	// Production environments should always set this to false.
	skipAuth bool
}

// NewAPI creates a new API instance with authentication enabled by default.
// The apiKeyHash parameter must be the SHA-256 hash of the API key.
// Panics if apiKeyHash is empty, as authentication cannot be disabled with
// this constructor.
func NewAPI(engine ReportEngine, apiKeyHash string) *API {
	return NewAPIWithConfig(engine, apiKeyHash, false)
}

// NewAPIWithConfig creates a new API instance with explicit control over
// authentication. This constructor is primarily used in tests to disable
// authentication.
//
// Panics if:
//   - engine is nil
//   - apiKeyHash is empty when skipAuth is false
func NewAPIWithConfig(engine ReportEngine, apiKeyHash string, skipAuth bool) *API {
	// We check the interface explicitly.
	// An interface is only nil if it has no underlying type and no value.
	if engine == nil {
		panic("insightsapi: report engine cannot be nil")
	}

	// Validate authentication configuration
	if !skipAuth && apiKeyHash == "" {
		panic("insightsapi: apiKeyHash cannot be empty when authentication is enabled")
	}

	api := &API{
		Router:     chi.NewRouter(),
		engine:     engine,
		apiKeyHash: apiKeyHash,
		skipAuth:   skipAuth,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	// 1. Global Middleware Stack
	// RequestID: Adds a unique ID to each request context (essential for tracing).
	a.Router.Use(middleware.RequestID)
	// RealIP: correctly sets the IP if behind a proxy/LB.
	a.Router.Use(middleware.RealIP)
	// Logger: Logs request method, path, status, and duration, and records
	// the request metrics.
	a.Router.Use(RequestLogger)
	// Recoverer: Prevents the server from crashing on panics, returning 500 instead.
	a.Router.Use(middleware.Recoverer)
	// Content-Type: Forces JSON content type for API responses.
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	// 2. Public Routes (no authentication required)
	a.Router.Get("/health", a.handleHealthCheck)

	// 3. Protected API V1 Routes (authentication required)
	a.Router.Route("/api/v1", func(r chi.Router) {
		// Apply authentication middleware to all /api/v1/* routes
		r.Use(a.authenticateAPIKey)

		r.Route("/routing-forms/{formID}", func(r chi.Router) {
			r.Get("/virtual-queues", a.handleVirtualQueues)
			r.Post("/routes/{routeID}/match", a.handleMatchPreview)
		})
	})
}

// handleHealthCheck verifies if the service is able to serve HTTP traffic.
// Deep dependency checks live on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
