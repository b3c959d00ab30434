// Package insights orchestrates the virtual-queue report: it drives the
// queue builder and the weighted assignment selector across every
// qualifying route of a routing form and assembles the ordered host lists
// per queue for observability and preview purposes.
//
// This is the only package that talks to the repository layer; the core
// algorithm packages (routing, matching, queue, selector) receive
// immutable input snapshots and never perform I/O of their own.
package insights

import (
	"context"

	"github.com/rondohq/rondo/internal/queue"
	"github.com/rondohq/rondo/internal/routing"
	"github.com/rondohq/rondo/internal/selector"
)

// EventType is an event type snapshot with its round-robin host pool.
type EventType struct {
	ID               int64
	Title            string
	SchedulingType   string
	RRWeightsEnabled bool
	Hosts            []selector.Host
}

// User is the member identity slice exposed in reports.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FormSource resolves routing forms. A missing form is an error (wrapping
// the repository's not-found sentinel), not a nil result.
type FormSource interface {
	FormByID(ctx context.Context, id string) (*routing.Form, error)
}

// AttributeSource resolves team attributes and their assignments.
type AttributeSource interface {
	// WeightedAttribute returns the team's weight-enabled attribute, or nil
	// when the team has none (feature disabled). When a team defines more
	// than one, the first created wins; implementations log the conflict.
	WeightedAttribute(ctx context.Context, teamID int64) (*routing.Attribute, error)

	// AttributeOptions lists the selectable options of one attribute.
	AttributeOptions(ctx context.Context, attributeID string) ([]routing.AttributeOption, error)

	// UserOptions returns the options of one attribute assigned to one
	// user. Empty means the user is not configured for virtual queues.
	UserOptions(ctx context.Context, attributeID string, userID int64) ([]routing.AttributeOption, error)
}

// TeamSource resolves organization membership.
type TeamSource interface {
	// OrgIDForUser returns the id of the user's organization, or zero when
	// the user belongs to none.
	OrgIDForUser(ctx context.Context, userID int64) (int64, error)

	// TeamMemberIDs lists the user ids of every member of the team.
	TeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error)
}

// EventTypeSource resolves event types. It extends the builder's lookup
// with the full host pool read.
type EventTypeSource interface {
	queue.EventTypeLookup

	// EventTypeWithHosts returns the event type and its host pool, or nil
	// when the event type does not exist.
	EventTypeWithHosts(ctx context.Context, id int64) (*EventType, error)
}

// UserSource resolves user identities.
type UserSource interface {
	UsersByIDs(ctx context.Context, ids []int64) ([]User, error)
}

// BookingSource supplies the assignment history accounting.
type BookingSource interface {
	// AssignmentCounts returns, per user id, how many assignments each host
	// has received for the event type in the accounting window. Missing
	// entries mean zero.
	AssignmentCounts(ctx context.Context, eventTypeID int64, userIDs []int64) (map[int64]int, error)
}

// QueueResult is the computed ordering for one (queue, option) pair: "if
// the respondent picked this option, these hosts are eligible, in this
// order".
type QueueResult struct {
	RouteID     string                      `json:"route_id"`
	EventTypeID int64                       `json:"event_type_id"`
	FieldID     string                      `json:"field_id"`
	FieldLabel  string                      `json:"field_label"`
	OptionID    string                      `json:"option_id"`
	OptionLabel string                      `json:"option_label"`
	Members     []User                      `json:"matching_members"`
	PerUser     map[int64]selector.Standing `json:"per_user_data"`
}

// Report is the assembled virtual-queue report for one form and one
// requesting user. It is immutable once returned.
type Report struct {
	FormID      string        `json:"form_id"`
	TeamID      int64         `json:"team_id"`
	AttributeID string        `json:"attribute_id"`
	Queues      []QueueResult `json:"queues"`
}

// Preview is the outcome of a read-only match computation for one route
// and one (possibly hand-crafted) form response.
type Preview struct {
	RouteID      string             `json:"route_id"`
	Members      []User             `json:"members"`
	UsedFallback bool               `json:"used_fallback"`
	Trace        map[int64][]string `json:"trace"`
}
