package insightsapi

import (
	"strings"

	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/routing"
)

// VirtualQueuesResponse wraps the computed report. Enabled is false when
// the engine short-circuited: no organization, no weight-enabled attribute,
// or a user without attribute assignments. The distinction matters to
// clients because a disabled report is not an empty one.
type VirtualQueuesResponse struct {
	Enabled bool             `json:"enabled"`
	Report  *insights.Report `json:"report,omitempty"`
}

// MatchPreviewRequest defines the payload for the route match preview
// endpoint. The response maps field ids to the option the hypothetical
// respondent picked.
type MatchPreviewRequest struct {
	Response map[string]FieldAnswer `json:"response"`
}

// FieldAnswer is one submitted field value. Value carries the id of the
// selected option; Label carries its display text.
type FieldAnswer struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sanitize trims surrounding whitespace from every answer in-place.
func (r *MatchPreviewRequest) Sanitize() {
	for field, answer := range r.Response {
		answer.Label = strings.TrimSpace(answer.Label)
		answer.Value = strings.TrimSpace(answer.Value)
		r.Response[field] = answer
	}
}

// Validate checks the request against business rules. It returns a
// structured *ErrorResponse if validation fails, or nil if valid.
func (r *MatchPreviewRequest) Validate() *ErrorResponse {
	if len(r.Response) == 0 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Response must contain at least one field answer",
		}
	}
	for field, answer := range r.Response {
		if field == "" {
			return &ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: "Field ids must not be empty",
			}
		}
		if answer.Label == "" && answer.Value == "" {
			return &ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: "Answer for field '" + field + "' must carry a label or a value",
			}
		}
	}
	return nil
}

// toFormResponse maps the DTO to the domain response shape.
func (r *MatchPreviewRequest) toFormResponse() routing.FormResponse {
	response := make(routing.FormResponse, len(r.Response))
	for field, answer := range r.Response {
		response[field] = routing.ResponseValue{Label: answer.Label, Value: answer.Value}
	}
	return response
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}
