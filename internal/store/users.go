package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rondohq/rondo/internal/insights"
)

// UsersByIDs fetches the identity slice of the given users, ordered by
// ascending id. Ids without a matching row are silently absent from the
// result; the caller decides whether that is an integrity problem.
func (s *PostgresStore) UsersByIDs(ctx context.Context, ids []int64) ([]insights.User, error) {
	if len(ids) == 0 {
		return []insights.User{}, nil
	}

	query := `
		SELECT id, name, email
		FROM users
		WHERE id = ANY($1)
		ORDER BY id ASC
	`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]insights.User, 0, len(ids))
	for rows.Next() {
		var u insights.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

// OrgIDForUser returns the id of the user's organization, or zero when
// the user belongs to none. Only accepted memberships count.
func (s *PostgresStore) OrgIDForUser(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT t.id
		FROM teams t
		JOIN memberships m ON m.team_id = t.id
		WHERE m.user_id = $1 AND m.accepted = TRUE AND t.is_organization = TRUE
		ORDER BY t.id ASC
		LIMIT 1
	`

	var orgID int64
	err := s.db.QueryRow(ctx, query, userID).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to resolve organization for user %d: %w", userID, err)
	}

	return orgID, nil
}

// TeamMemberIDs lists the user ids of every accepted member of the team,
// in ascending order.
func (s *PostgresStore) TeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	query := `
		SELECT user_id
		FROM memberships
		WHERE team_id = $1 AND accepted = TRUE
		ORDER BY user_id ASC
	`

	rows, err := s.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}
