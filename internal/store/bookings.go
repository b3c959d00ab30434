package store

import (
	"context"
	"fmt"
)

// AssignmentCounts returns, per user id, how many assignments each host
// has received for the event type since the start of the current calendar
// month. The monthly window keeps fairness scores from being dominated by
// ancient history; users missing from the map have zero assignments.
func (s *PostgresStore) AssignmentCounts(ctx context.Context, eventTypeID int64, userIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT assigned_user_id, count(*)
		FROM bookings
		WHERE event_type_id = $1
		  AND assigned_user_id = ANY($2)
		  AND status != 'cancelled'
		  AND created_at >= date_trunc('month', now())
		GROUP BY assigned_user_id
	`

	rows, err := s.db.Query(ctx, query, eventTypeID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan assignment count: %w", err)
		}
		counts[userID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return counts, nil
}
