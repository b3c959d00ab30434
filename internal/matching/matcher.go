// Package matching computes the set of team members satisfying a route's
// attribute logic for a given (possibly simulated) form response.
//
// It resolves the dynamic "{field:<id>}" value tokens of a query against
// the response (joining routing-form field option labels to attribute
// option values, case-sensitive), then runs the pure routing evaluator
// once per candidate member.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rondohq/rondo/internal/routing"
)

// AttributeCatalog exposes the team attribute data the matcher needs.
// Implementations are read-only; the matcher never mutates catalog state.
type AttributeCatalog interface {
	// TeamAttributes lists every attribute defined on the team.
	TeamAttributes(ctx context.Context, teamID int64) ([]routing.Attribute, error)

	// AttributeOptions lists the selectable options of one attribute.
	AttributeOptions(ctx context.Context, attributeID string) ([]routing.AttributeOption, error)

	// MemberOptions returns the option ids of one attribute assigned to one
	// team member. An empty set is a valid answer, not an error.
	MemberOptions(ctx context.Context, attributeID string, memberID int64) ([]string, error)
}

// Params carries one match computation's immutable input snapshot.
type Params struct {
	Route    routing.Route
	Fields   []routing.FormField
	Response routing.FormResponse
	TeamID   int64

	// MemberIDs is the candidate pool. Output order does not depend on the
	// order given here.
	MemberIDs []int64
}

// Result is the outcome of one match computation.
type Result struct {
	// MemberIDs holds the matching members in ascending id order.
	MemberIDs []int64

	// UsedFallback is true when the primary logic yielded zero matches and
	// the route's fallback query produced this result instead.
	UsedFallback bool

	// Trace maps each matched member to the leaf condition ids that fired
	// for them, for explainability in previews.
	Trace map[int64][]string
}

// Matcher evaluates route logic against team members.
type Matcher struct {
	catalog AttributeCatalog
	logger  *slog.Logger
}

// New creates a Matcher. A nil logger falls back to slog.Default().
func New(catalog AttributeCatalog, logger *slog.Logger) *Matcher {
	if catalog == nil {
		panic("matching: attribute catalog cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{catalog: catalog, logger: logger}
}

// Match runs the primary pass and, when it yields zero matches and the
// route defines a fallback query, the fallback pass.
//
// Zero matches is a valid, reportable outcome, not an error. Errors are
// reserved for broken configuration (unresolvable attribute references,
// unsupported operators) and repository failures.
func (m *Matcher) Match(ctx context.Context, p Params) (Result, error) {
	primary, err := m.matchQuery(ctx, p.Route.AttributesQuery, p)
	if err != nil {
		return Result{}, err
	}
	if len(primary.MemberIDs) > 0 || p.Route.FallbackQuery == nil {
		return primary, nil
	}

	m.logger.Debug("primary attribute logic matched nobody, trying fallback",
		slog.String("route_id", p.Route.ID),
	)

	fallback, err := m.matchQuery(ctx, p.Route.FallbackQuery, p)
	if err != nil {
		return Result{}, err
	}
	fallback.UsedFallback = true
	return fallback, nil
}

func (m *Matcher) matchQuery(ctx context.Context, query *routing.QueryNode, p Params) (Result, error) {
	result := Result{MemberIDs: []int64{}, Trace: map[int64][]string{}}

	// A route without attribute logic places no constraint: every candidate
	// matches.
	if query == nil {
		result.MemberIDs = append(result.MemberIDs, p.MemberIDs...)
		sort.Slice(result.MemberIDs, func(i, j int) bool { return result.MemberIDs[i] < result.MemberIDs[j] })
		return result, nil
	}

	leaves := query.Leaves()

	// 1. Every referenced field must resolve against the team's catalog.
	attributeIDs, err := m.checkFieldsResolvable(ctx, leaves, p.TeamID)
	if err != nil {
		return Result{}, err
	}

	// 2. Resolve dynamic value tokens into attribute option ids.
	resolved, err := m.resolveQuery(ctx, query, p)
	if err != nil {
		return Result{}, err
	}

	// 3. Evaluate per candidate, in deterministic order.
	ids := append([]int64(nil), p.MemberIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, memberID := range ids {
		member, err := m.memberContext(ctx, attributeIDs, memberID)
		if err != nil {
			return Result{}, err
		}

		matched, trace, err := routing.EvaluateWithTrace(resolved, member)
		if err != nil {
			return Result{}, err
		}
		if matched {
			result.MemberIDs = append(result.MemberIDs, memberID)
			result.Trace[memberID] = trace
		}
	}

	return result, nil
}

// checkFieldsResolvable verifies every leaf field against the team's
// attribute catalog and returns the distinct attribute ids in leaf order.
func (m *Matcher) checkFieldsResolvable(ctx context.Context, leaves []routing.LeafNode, teamID int64) ([]string, error) {
	attributes, err := m.catalog.TeamAttributes(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team attributes: %w", err)
	}

	known := make(map[string]struct{}, len(attributes))
	for _, attr := range attributes {
		known[attr.ID] = struct{}{}
	}

	var ids []string
	seen := make(map[string]struct{}, len(leaves))
	for _, leaf := range leaves {
		if _, ok := known[leaf.Field]; !ok {
			return nil, &routing.ConfigurationError{
				Field:  leaf.Field,
				Reason: "route references an attribute that does not exist on the team",
			}
		}
		if _, dup := seen[leaf.Field]; dup {
			continue
		}
		seen[leaf.Field] = struct{}{}
		ids = append(ids, leaf.Field)
	}
	return ids, nil
}

// resolveQuery returns a deep copy of the query with every dynamic field
// reference replaced by the attribute option ids it binds to through the
// response. Literal tokens pass through untouched.
func (m *Matcher) resolveQuery(ctx context.Context, query *routing.QueryNode, p Params) (*routing.QueryNode, error) {
	if query.Leaf != nil {
		resolved, err := m.resolveLeaf(ctx, *query.Leaf, p)
		if err != nil {
			return nil, err
		}
		return &routing.QueryNode{Leaf: resolved}, nil
	}
	if query.Group == nil {
		return query, nil
	}

	group := routing.GroupNode{Combinator: query.Group.Combinator}
	for i := range query.Group.Children {
		child, err := m.resolveQuery(ctx, &query.Group.Children[i], p)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, *child)
	}
	return &routing.QueryNode{Group: &group}, nil
}

func (m *Matcher) resolveLeaf(ctx context.Context, leaf routing.LeafNode, p Params) (*routing.LeafNode, error) {
	resolved := leaf
	resolved.Values = nil

	for _, token := range leaf.Values {
		fieldID, err := routing.DecodeFieldRef(token)
		if errors.Is(err, routing.ErrNotFieldRef) {
			// Literal attribute option id.
			resolved.Values = append(resolved.Values, token)
			continue
		}
		if err != nil {
			return nil, err
		}

		optionIDs, err := m.bindResponseValue(ctx, leaf.Field, fieldID, p)
		if err != nil {
			return nil, err
		}
		resolved.Values = append(resolved.Values, optionIDs...)
	}

	return &resolved, nil
}

// bindResponseValue translates the response's selected field option into
// the attribute option ids it names, via exact label equality. A missing
// answer or a label with no attribute counterpart binds nothing: the leaf
// simply cannot match through this token.
func (m *Matcher) bindResponseValue(ctx context.Context, attributeID, fieldID string, p Params) ([]string, error) {
	answer, ok := p.Response[fieldID]
	if !ok || answer.Value == "" {
		return nil, nil
	}

	var label string
	for _, field := range p.Fields {
		if field.ID != fieldID {
			continue
		}
		for _, opt := range field.Options {
			if opt.ID == answer.Value {
				label = opt.Label
				break
			}
		}
	}
	if label == "" {
		return nil, nil
	}

	options, err := m.catalog.AttributeOptions(ctx, attributeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load options for attribute %s: %w", attributeID, err)
	}

	var ids []string
	for _, opt := range options {
		if opt.Value == label {
			ids = append(ids, opt.ID)
		}
	}
	return ids, nil
}

func (m *Matcher) memberContext(ctx context.Context, attributeIDs []string, memberID int64) (routing.MemberContext, error) {
	member := make(routing.MemberContext, len(attributeIDs))
	for _, attributeID := range attributeIDs {
		options, err := m.catalog.MemberOptions(ctx, attributeID, memberID)
		if err != nil {
			return nil, fmt.Errorf("failed to load member %d options for attribute %s: %w", memberID, attributeID, err)
		}
		member[attributeID] = options
	}
	return member, nil
}
