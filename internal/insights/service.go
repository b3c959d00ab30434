package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rondohq/rondo/internal/matching"
	"github.com/rondohq/rondo/internal/observability"
	"github.com/rondohq/rondo/internal/queue"
	"github.com/rondohq/rondo/internal/routing"
	"github.com/rondohq/rondo/internal/selector"
)

// Deps bundles the collaborators of the insights service. Every field is
// mandatory.
type Deps struct {
	Forms      FormSource
	Attributes AttributeSource
	Teams      TeamSource
	Events     EventTypeSource
	Users      UserSource
	Bookings   BookingSource
	Builder    *queue.Builder
	Matcher    *matching.Matcher
	Logger     *slog.Logger
}

// Service computes virtual-queue reports and match previews.
type Service struct {
	forms      FormSource
	attributes AttributeSource
	teams      TeamSource
	events     EventTypeSource
	users      UserSource
	bookings   BookingSource
	builder    *queue.Builder
	matcher    *matching.Matcher
	logger     *slog.Logger
}

// New creates the insights service. It panics on missing dependencies:
// wiring is programmer error, not a runtime condition.
func New(deps Deps) *Service {
	if deps.Forms == nil {
		panic("insights: form source cannot be nil")
	}
	if deps.Attributes == nil {
		panic("insights: attribute source cannot be nil")
	}
	if deps.Teams == nil {
		panic("insights: team source cannot be nil")
	}
	if deps.Events == nil {
		panic("insights: event type source cannot be nil")
	}
	if deps.Users == nil {
		panic("insights: user source cannot be nil")
	}
	if deps.Bookings == nil {
		panic("insights: booking source cannot be nil")
	}
	if deps.Builder == nil {
		panic("insights: queue builder cannot be nil")
	}
	if deps.Matcher == nil {
		panic("insights: matcher cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{
		forms:      deps.Forms,
		attributes: deps.Attributes,
		teams:      deps.Teams,
		events:     deps.Events,
		users:      deps.Users,
		bookings:   deps.Bookings,
		builder:    deps.Builder,
		matcher:    deps.Matcher,
		logger:     deps.Logger,
	}
}

// VirtualQueueReport computes the full virtual-queue report for one form
// as seen by one requesting user.
//
// A nil report with a nil error means a short-circuit fired: the form's
// team has no weight-enabled attribute, the user has no organization, or
// the user has no options selected for the weighted attribute. These are
// valid "feature not configured" outcomes, not failures, and the caller
// must distinguish them from errors.
//
// Queues with broken configuration or integrity problems are skipped and
// logged; sibling queues still appear in the report.
func (s *Service) VirtualQueueReport(ctx context.Context, userID int64, formID string) (*Report, error) {
	start := time.Now()
	defer func() { observability.ReportDuration.Observe(time.Since(start).Seconds()) }()

	log := s.logger.With(
		slog.String("form_id", formID),
		slog.Int64("user_id", userID),
	)

	// 1. Resolve the form. A missing form is a caller error, not a
	// short-circuit.
	form, err := s.forms.FormByID(ctx, formID)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to resolve form %s: %w", formID, err)
	}

	// 2–4. Short-circuit chain: org → weighted attribute → user options.
	orgID, err := s.teams.OrgIDForUser(ctx, userID)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to resolve organization for user %d: %w", userID, err)
	}
	if orgID == 0 {
		log.Debug("user has no organization, virtual queues unavailable")
		observability.ReportsTotal.WithLabelValues("disabled").Inc()
		return nil, nil
	}

	weighted, err := s.attributes.WeightedAttribute(ctx, orgID)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to resolve weighted attribute for team %d: %w", orgID, err)
	}
	if weighted == nil {
		log.Debug("no weight-enabled attribute, virtual queues disabled for team",
			slog.Int64("team_id", orgID))
		observability.ReportsTotal.WithLabelValues("disabled").Inc()
		return nil, nil
	}

	userOptions, err := s.attributes.UserOptions(ctx, weighted.ID, userID)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to resolve user options: %w", err)
	}
	if len(userOptions) == 0 {
		log.Debug("user has no options for the weighted attribute, nothing to report")
		observability.ReportsTotal.WithLabelValues("disabled").Inc()
		return nil, nil
	}

	weightedOptions, err := s.attributes.AttributeOptions(ctx, weighted.ID)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to resolve attribute options: %w", err)
	}

	// 5. Derive the virtual queues.
	queues, problems, err := s.builder.Build(ctx, form, weighted, weightedOptions, userOptions)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	for _, problem := range problems {
		log.Warn("route skipped during queue construction", slog.String("error", problem.Error()))
		observability.QueuesSkipped.WithLabelValues("configuration").Inc()
	}
	observability.QueuesBuilt.Add(float64(len(queues)))

	memberIDs, err := s.teams.TeamMemberIDs(ctx, form.TeamID)
	if err != nil {
		observability.ReportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to resolve team members: %w", err)
	}

	// 6. One result per (queue, option), in route order then option order,
	// so report ordering never depends on timing.
	report := &Report{
		FormID:      form.ID,
		TeamID:      form.TeamID,
		AttributeID: weighted.ID,
		Queues:      []QueueResult{},
	}

	for _, q := range queues {
		results, err := s.evaluateQueue(ctx, log, form, q, memberIDs)
		if err != nil {
			observability.ReportsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		report.Queues = append(report.Queues, results...)
	}

	observability.ReportsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

// evaluateQueue simulates one form response per bound option and computes
// the assignment order for each. Classified per-queue failures
// (configuration, data integrity) are logged and skip the queue; only
// repository failures propagate.
func (s *Service) evaluateQueue(
	ctx context.Context,
	log *slog.Logger,
	form *routing.Form,
	q queue.VirtualQueue,
	memberIDs []int64,
) ([]QueueResult, error) {
	// Restrict the route's logic to the sub-tree gated on this queue's
	// field; the simulated response answers only that field.
	restricted := q.Route
	restricted.AttributesQuery = q.Route.AttributesQuery.FilterByFieldRef(q.FieldID)
	restricted.FallbackQuery = nil

	eventType, err := s.events.EventTypeWithHosts(ctx, q.EventTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve event type %d: %w", q.EventTypeID, err)
	}
	if eventType == nil {
		log.Warn("queue skipped: event type vanished",
			slog.Int64("event_type_id", q.EventTypeID),
			slog.String("route_id", q.Route.ID),
		)
		observability.QueuesSkipped.WithLabelValues("configuration").Inc()
		return nil, nil
	}

	var results []QueueResult
	for _, opt := range q.Options {
		response := routing.FormResponse{
			q.FieldID: {Label: q.FieldLabel, Value: opt.FormOptionID},
		}

		matched, err := s.matcher.Match(ctx, matching.Params{
			Route:     restricted,
			Fields:    form.Fields,
			Response:  response,
			TeamID:    form.TeamID,
			MemberIDs: memberIDs,
		})
		if err != nil {
			var cfgErr *routing.ConfigurationError
			var opErr *routing.UnsupportedOperatorError
			if errors.As(err, &cfgErr) || errors.As(err, &opErr) {
				log.Warn("queue skipped: broken route configuration",
					slog.String("route_id", q.Route.ID),
					slog.String("error", err.Error()),
				)
				observability.QueuesSkipped.WithLabelValues("configuration").Inc()
				return nil, nil
			}
			return nil, err
		}

		result, err := s.orderHosts(ctx, eventType, q, opt, matched.MemberIDs)
		if err != nil {
			var integrityErr *DataIntegrityError
			if errors.As(err, &integrityErr) {
				log.Error("queue skipped: data integrity violation",
					slog.String("route_id", q.Route.ID),
					slog.Int64("event_type_id", q.EventTypeID),
					slog.String("error", err.Error()),
				)
				observability.QueuesSkipped.WithLabelValues("data_integrity").Inc()
				return nil, nil
			}
			return nil, err
		}
		results = append(results, *result)
	}

	return results, nil
}

// orderHosts intersects the matched members with the event type's host
// pool and runs the weighted assignment selector over the intersection.
func (s *Service) orderHosts(
	ctx context.Context,
	eventType *EventType,
	q queue.VirtualQueue,
	opt queue.Option,
	matchedIDs []int64,
) (*QueueResult, error) {
	result := &QueueResult{
		RouteID:     q.Route.ID,
		EventTypeID: q.EventTypeID,
		FieldID:     q.FieldID,
		FieldLabel:  q.FieldLabel,
		OptionID:    opt.AttributeOptionID,
		OptionLabel: opt.Label,
		Members:     []User{},
		PerUser:     map[int64]selector.Standing{},
	}
	if len(matchedIDs) == 0 {
		// Zero matches is a reportable outcome: the queue shows empty.
		return result, nil
	}

	matchedSet := make(map[int64]struct{}, len(matchedIDs))
	for _, id := range matchedIDs {
		matchedSet[id] = struct{}{}
	}

	var hosts []selector.Host
	for _, h := range eventType.Hosts {
		if _, ok := matchedSet[h.UserID]; ok {
			hosts = append(hosts, h)
		}
	}

	users, err := s.users.UsersByIDs(ctx, matchedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve matched users: %w", err)
	}

	// Every member matched by attribute logic must actually be a host of
	// the event; a divergence means stale assignment data.
	if len(users) != len(hosts) {
		return nil, &DataIntegrityError{
			EventTypeID:  eventType.ID,
			MatchedCount: len(users),
			HostCount:    len(hosts),
		}
	}

	hostIDs := make([]int64, len(hosts))
	for i, h := range hosts {
		hostIDs[i] = h.UserID
	}
	counts, err := s.bookings.AssignmentCounts(ctx, eventType.ID, hostIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignment history: %w", err)
	}

	order := selector.Select(hosts, counts)
	observability.SelectorRuns.Inc()

	byID := make(map[int64]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, id := range order.OrderedUserIDs {
		result.Members = append(result.Members, byID[id])
	}
	result.PerUser = order.PerUser

	return result, nil
}

// MatchPreview runs the Team Member Matcher for one route of a form
// against a caller-supplied response, without touching assignment state.
// It powers the read-only "who would this route?" view.
func (s *Service) MatchPreview(ctx context.Context, formID, routeID string, response routing.FormResponse) (*Preview, error) {
	form, err := s.forms.FormByID(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve form %s: %w", formID, err)
	}

	var route *routing.Route
	for i := range form.Routes {
		if form.Routes[i].ID == routeID {
			route = &form.Routes[i]
			break
		}
	}
	if route == nil {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}

	memberIDs, err := s.teams.TeamMemberIDs(ctx, form.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team members: %w", err)
	}

	matched, err := s.matcher.Match(ctx, matching.Params{
		Route:     *route,
		Fields:    form.Fields,
		Response:  response,
		TeamID:    form.TeamID,
		MemberIDs: memberIDs,
	})
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		RouteID:      routeID,
		Members:      []User{},
		UsedFallback: matched.UsedFallback,
		Trace:        matched.Trace,
	}
	if len(matched.MemberIDs) > 0 {
		users, err := s.users.UsersByIDs(ctx, matched.MemberIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve matched users: %w", err)
		}
		preview.Members = users
	}

	return preview, nil
}
