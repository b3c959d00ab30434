package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rondohq/rondo/internal/insights"
	"github.com/rondohq/rondo/internal/queue"
	"github.com/rondohq/rondo/internal/selector"
)

// SchedulingInfo resolves the scheduling slice of one event type. A nil
// result means the event type does not exist; the queue builder treats
// that as broken route configuration, not as a repository failure.
func (s *PostgresStore) SchedulingInfo(ctx context.Context, eventTypeID int64) (*queue.SchedulingInfo, error) {
	query := `
		SELECT scheduling_type, rr_weights_enabled
		FROM event_types
		WHERE id = $1
	`

	var info queue.SchedulingInfo
	err := s.db.QueryRow(ctx, query, eventTypeID).Scan(&info.SchedulingType, &info.RRWeightsEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch event type %d: %w", eventTypeID, err)
	}

	return &info, nil
}

// EventTypeWithHosts fetches one event type and its full host pool, or
// nil when the event type does not exist. Hosts come back in ascending
// user id order.
func (s *PostgresStore) EventTypeWithHosts(ctx context.Context, id int64) (*insights.EventType, error) {
	query := `
		SELECT id, title, scheduling_type, rr_weights_enabled
		FROM event_types
		WHERE id = $1
	`

	var et insights.EventType
	err := s.db.QueryRow(ctx, query, id).Scan(&et.ID, &et.Title, &et.SchedulingType, &et.RRWeightsEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch event type %d: %w", id, err)
	}

	hostsQuery := `
		SELECT user_id, weight, priority
		FROM hosts
		WHERE event_type_id = $1
		ORDER BY user_id ASC
	`

	rows, err := s.db.Query(ctx, hostsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts of event type %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h selector.Host
		if err := rows.Scan(&h.UserID, &h.Weight, &h.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan host row: %w", err)
		}
		et.Hosts = append(et.Hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &et, nil
}
