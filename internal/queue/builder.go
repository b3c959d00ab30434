// Package queue derives "virtual queues" from a routing form: one queue
// per (route, routing-form field) pair where the route redirects to a
// weighted round-robin event type and gates on the team's weight-enabled
// attribute.
//
// Queues are derived, never persisted. They are constructed fresh per
// insights request and discarded with the response.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rondohq/rondo/internal/routing"
)

// SchedulingInfo is the slice of an event type the builder needs to decide
// whether a route is weight-gated.
type SchedulingInfo struct {
	SchedulingType   string
	RRWeightsEnabled bool
}

// SchedulingTypeRoundRobin marks event types whose host is chosen by
// rotation.
const SchedulingTypeRoundRobin = "ROUND_ROBIN"

// Weighted reports whether assignments to this event type honor host
// weights.
func (s SchedulingInfo) Weighted() bool {
	return s.SchedulingType == SchedulingTypeRoundRobin && s.RRWeightsEnabled
}

// EventTypeLookup resolves event type scheduling info. A nil result means
// the event type does not exist; the owning route is broken configuration.
type EventTypeLookup interface {
	SchedulingInfo(ctx context.Context, eventTypeID int64) (*SchedulingInfo, error)
}

// Option binds one of the requesting user's attribute options to the
// routing-form field option carrying the same label.
type Option struct {
	// AttributeOptionID is the id of the weighted attribute's option.
	AttributeOptionID string

	// FormOptionID is the id of the form field option with the matching
	// label; simulated responses select this id.
	FormOptionID string

	Label string
}

// VirtualQueue describes one derived queue: a route, its redirect target,
// and the form field whose options partition the eligible hosts.
type VirtualQueue struct {
	Route       routing.Route
	EventTypeID int64
	FieldID     string
	FieldLabel  string
	AttributeID string

	// Options is the ordered list of bound option values; the insights
	// layer simulates one form response per entry.
	Options []Option
}

// Builder constructs virtual queues for a form.
type Builder struct {
	events EventTypeLookup
	logger *slog.Logger
}

// New creates a Builder. A nil logger falls back to slog.Default().
func New(events EventTypeLookup, logger *slog.Logger) *Builder {
	if events == nil {
		panic("queue: event type lookup cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{events: events, logger: logger}
}

// Build walks the form's routes and emits one VirtualQueue per weight-gated
// (route, field) pair.
//
// A nil weighted attribute short-circuits to no queues: the feature is
// considered disabled for the team. Configuration problems on one route are
// returned in problems and that route is skipped; sibling routes continue.
// Repository failures abort the whole build.
func (b *Builder) Build(
	ctx context.Context,
	form *routing.Form,
	weighted *routing.Attribute,
	weightedOptions []routing.AttributeOption,
	userOptions []routing.AttributeOption,
) (queues []VirtualQueue, problems []error, err error) {
	if weighted == nil {
		return nil, nil, nil
	}

	for _, route := range form.Routes {
		routeQueues, problem, err := b.buildRoute(ctx, form, route, weighted, weightedOptions, userOptions)
		if err != nil {
			return nil, problems, err
		}
		if problem != nil {
			b.logger.Warn("skipping route with broken configuration",
				slog.String("form_id", form.ID),
				slog.String("route_id", route.ID),
				slog.String("error", problem.Error()),
			)
			problems = append(problems, problem)
			continue
		}
		queues = append(queues, routeQueues...)
	}

	return queues, problems, nil
}

func (b *Builder) buildRoute(
	ctx context.Context,
	form *routing.Form,
	route routing.Route,
	weighted *routing.Attribute,
	weightedOptions []routing.AttributeOption,
	userOptions []routing.AttributeOption,
) ([]VirtualQueue, error, error) {
	// 1. Only routes redirecting to a weighted round-robin event type
	// qualify.
	if route.Action.EventTypeID == 0 {
		return nil, nil, nil
	}
	info, err := b.events.SchedulingInfo(ctx, route.Action.EventTypeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve event type %d: %w", route.Action.EventTypeID, err)
	}
	if info == nil {
		return nil, &routing.ConfigurationError{
			Reason: fmt.Sprintf("route %s redirects to unknown event type %d", route.ID, route.Action.EventTypeID),
		}, nil
	}
	if !info.Weighted() {
		return nil, nil, nil
	}

	// 2. Find the leaves gated on the weighted attribute and the form
	// fields they reference. One queue per distinct field, even when
	// several leaves reference it.
	var queues []VirtualQueue
	seenFields := make(map[string]struct{})

	for _, leaf := range route.AttributesQuery.Leaves() {
		if leaf.Field != weighted.ID {
			continue
		}

		for _, token := range leaf.Values {
			fieldID, err := routing.DecodeFieldRef(token)
			if errors.Is(err, routing.ErrNotFieldRef) {
				// Literal option value: not a queue binding.
				continue
			}
			if err != nil {
				// Malformed references are skipped, not fatal; the decode
				// error is still surfaced per-route for observability.
				b.logger.Warn("skipping malformed field reference",
					slog.String("route_id", route.ID),
					slog.String("token", token),
					slog.String("error", err.Error()),
				)
				continue
			}
			if _, dup := seenFields[fieldID]; dup {
				continue
			}

			field, ok := form.FieldByID(fieldID)
			if !ok {
				return nil, &routing.ConfigurationError{
					Field:  fieldID,
					Reason: "route references a routing-form field that does not exist",
				}, nil
			}
			seenFields[fieldID] = struct{}{}

			options := bindOptions(field, weightedOptions, userOptions)
			if len(options) == 0 {
				// Nothing to simulate for this queue.
				b.logger.Debug("no attribute options bind to the field, skipping queue",
					slog.String("route_id", route.ID),
					slog.String("field_id", fieldID),
				)
				continue
			}

			queues = append(queues, VirtualQueue{
				Route:       route,
				EventTypeID: route.Action.EventTypeID,
				FieldID:     fieldID,
				FieldLabel:  field.Label,
				AttributeID: weighted.ID,
				Options:     options,
			})
		}
	}

	return queues, nil, nil
}

// bindOptions joins the user's selected attribute options (or, when the
// user selected none, every option of the weighted attribute) to the form
// field's declared options by exact, case-sensitive label equality.
// Unmatched labels bind nothing and are dropped.
func bindOptions(field routing.FormField, weightedOptions, userOptions []routing.AttributeOption) []Option {
	source := userOptions
	if len(source) == 0 {
		source = weightedOptions
	}

	var bound []Option
	for _, attrOpt := range source {
		for _, fieldOpt := range field.Options {
			if fieldOpt.Label != attrOpt.Value {
				continue
			}
			bound = append(bound, Option{
				AttributeOptionID: attrOpt.ID,
				FormOptionID:      fieldOpt.ID,
				Label:             fieldOpt.Label,
			})
			break
		}
	}
	return bound
}
