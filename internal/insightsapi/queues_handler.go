package insightsapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/logger"
	"github.com/rondohq/rondo/internal/store"
)

// handleVirtualQueues processes GET /api/v1/routing-forms/{formID}/virtual-queues.
//
// Responsibilities:
// 1. Parses and validates the form id and user_id query parameter.
// 2. Calls the engine to compute the report.
// 3. Distinguishes "feature disabled" (nil report) from a populated report.
// 4. Maps a missing form to 404 and everything else to 500.
func (a *API) handleVirtualQueues(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	formID := chi.URLParam(r, "formID")

	// user_id identifies whose attribute assignments restrict the report.
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: "Query parameter 'user_id' is required",
		})
		return
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: "Query parameter 'user_id' must be a positive integer",
		})
		return
	}

	report, err := a.engine.VirtualQueueReport(r.Context(), userID, formID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_NOT_FOUND",
				Message: "Routing form not found",
			})
			return
		}

		log.Error("failed to compute virtual queue report",
			slog.String("form_id", formID),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to compute virtual queue report",
		})
		return
	}

	// A nil report with a nil error is the engine's "not configured"
	// answer, which is a valid outcome and not a 404.
	resp := VirtualQueuesResponse{Enabled: report != nil, Report: report}

	log.Info("virtual queue report served",
		slog.String("form_id", formID),
		slog.Int64("user_id", userID),
		slog.Bool("enabled", resp.Enabled),
	)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// handleMatchPreview processes POST /api/v1/routing-forms/{formID}/routes/{routeID}/match.
//
// Responsibilities:
// 1. Decodes and validates the hypothetical form response payload.
// 2. Calls the engine's read-only match preview.
// 3. Maps missing forms and routes to 404.
func (a *API) handleMatchPreview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	formID := chi.URLParam(r, "formID")
	routeID := chi.URLParam(r, "routeID")

	// 1. Decode Request
	var req MatchPreviewRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	// 2. Sanitize & Validate
	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	// 3. Compute Preview
	preview, err := a.engine.MatchPreview(r.Context(), formID, routeID, req.toFormResponse())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_NOT_FOUND",
				Message: "Routing form not found",
			})
		case errors.Is(err, insights.ErrRouteNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_NOT_FOUND",
				Message: "Route not found on form",
			})
		default:
			log.Error("failed to compute match preview",
				slog.String("form_id", formID),
				slog.String("route_id", routeID),
				slog.String("error", err.Error()),
			)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INTERNAL",
				Message: "Failed to compute match preview",
			})
		}
		return
	}

	log.Info("match preview served",
		slog.String("form_id", formID),
		slog.String("route_id", routeID),
		slog.Bool("used_fallback", preview.UsedFallback),
	)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, preview)
}
