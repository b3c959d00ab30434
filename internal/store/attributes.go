package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rondohq/rondo/internal/routing"
)

// WeightedAttribute returns the team's weight-enabled attribute, or nil
// when none exists. When a team defines several, the first created wins
// and the conflict is logged; the report must never flip between
// attributes depending on query timing.
func (s *PostgresStore) WeightedAttribute(ctx context.Context, teamID int64) (*routing.Attribute, error) {
	query := `
		SELECT id, team_id, name, is_weights_enabled
		FROM attributes
		WHERE team_id = $1 AND is_weights_enabled = TRUE
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weighted attribute: %w", err)
	}
	defer rows.Close()

	var attrs []routing.Attribute
	for rows.Next() {
		var a routing.Attribute
		if err := rows.Scan(&a.ID, &a.TeamID, &a.Name, &a.IsWeightsEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan attribute row: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(attrs) == 0 {
		return nil, nil
	}
	if len(attrs) > 1 {
		s.logger.Warn("team has multiple weight-enabled attributes, using the oldest",
			slog.Int64("team_id", teamID),
			slog.String("attribute_id", attrs[0].ID),
			slog.Int("conflicting", len(attrs)-1),
		)
	}

	return &attrs[0], nil
}

// TeamAttributes lists every attribute defined on the team.
func (s *PostgresStore) TeamAttributes(ctx context.Context, teamID int64) ([]routing.Attribute, error) {
	query := `
		SELECT id, team_id, name, is_weights_enabled
		FROM attributes
		WHERE team_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team attributes: %w", err)
	}
	defer rows.Close()

	var attrs []routing.Attribute
	for rows.Next() {
		var a routing.Attribute
		if err := rows.Scan(&a.ID, &a.TeamID, &a.Name, &a.IsWeightsEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan attribute row: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return attrs, nil
}

// AttributeOptions lists the selectable options of one attribute in
// creation order, which is also the order queues present them in.
func (s *PostgresStore) AttributeOptions(ctx context.Context, attributeID string) ([]routing.AttributeOption, error) {
	query := `
		SELECT id, attribute_id, value
		FROM attribute_options
		WHERE attribute_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, attributeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attribute options: %w", err)
	}
	defer rows.Close()

	var options []routing.AttributeOption
	for rows.Next() {
		var o routing.AttributeOption
		if err := rows.Scan(&o.ID, &o.AttributeID, &o.Value); err != nil {
			return nil, fmt.Errorf("failed to scan attribute option row: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return options, nil
}

// UserOptions returns the options of one attribute assigned to one user,
// in option creation order. Empty means the user is not configured for
// this attribute.
func (s *PostgresStore) UserOptions(ctx context.Context, attributeID string, userID int64) ([]routing.AttributeOption, error) {
	query := `
		SELECT o.id, o.attribute_id, o.value
		FROM attribute_options o
		JOIN attribute_assignments a ON a.option_id = o.id
		WHERE o.attribute_id = $1 AND a.user_id = $2
		ORDER BY o.created_at ASC, o.id ASC
	`

	rows, err := s.db.Query(ctx, query, attributeID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user attribute options: %w", err)
	}
	defer rows.Close()

	var options []routing.AttributeOption
	for rows.Next() {
		var o routing.AttributeOption
		if err := rows.Scan(&o.ID, &o.AttributeID, &o.Value); err != nil {
			return nil, fmt.Errorf("failed to scan attribute option row: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return options, nil
}

// MemberOptions returns the option ids of one attribute assigned to one
// team member. An empty set is a valid answer, not an error.
func (s *PostgresStore) MemberOptions(ctx context.Context, attributeID string, memberID int64) ([]string, error) {
	query := `
		SELECT o.id
		FROM attribute_options o
		JOIN attribute_assignments a ON a.option_id = o.id
		WHERE o.attribute_id = $1 AND a.user_id = $2
		ORDER BY o.id ASC
	`

	rows, err := s.db.Query(ctx, query, attributeID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member attribute options: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan option id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}
