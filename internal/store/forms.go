package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rondohq/rondo/internal/routing"
)

// FormRecord is the raw database representation of a routing form. Fields
// and Routes are kept as JSONB payloads so the record can travel through
// the cache unmodified; DecodeForm turns it into the domain shape.
type FormRecord struct {
	ID        string          `db:"id" json:"id"`
	TeamID    int64           `db:"team_id" json:"team_id"`
	Name      string          `db:"name" json:"name"`
	Fields    json.RawMessage `db:"fields" json:"fields"`
	Routes    json.RawMessage `db:"routes" json:"routes"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// formFieldDoc mirrors one entry of the fields JSONB payload.
type formFieldDoc struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Options []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"options"`
}

// formRouteDoc mirrors one entry of the routes JSONB payload. The query
// values stay raw; routing.ParseQuery validates them.
type formRouteDoc struct {
	ID     string `json:"id"`
	Action struct {
		Type        string `json:"type"`
		EventTypeID int64  `json:"eventTypeId"`
	} `json:"action"`
	QueryValue         json.RawMessage `json:"queryValue"`
	FallbackQueryValue json.RawMessage `json:"fallbackQueryValue"`
}

// DecodeForm parses a raw form record into the domain form, validating
// every route's query tree along the way.
func DecodeForm(rec *FormRecord) (*routing.Form, error) {
	form := &routing.Form{
		ID:     rec.ID,
		TeamID: rec.TeamID,
		Name:   rec.Name,
	}

	var fieldDocs []formFieldDoc
	if len(rec.Fields) > 0 {
		if err := json.Unmarshal(rec.Fields, &fieldDocs); err != nil {
			return nil, fmt.Errorf("failed to decode fields of form %s: %w", rec.ID, err)
		}
	}
	for _, doc := range fieldDocs {
		field := routing.FormField{ID: doc.ID, Label: doc.Label}
		for _, opt := range doc.Options {
			field.Options = append(field.Options, routing.FieldOption{ID: opt.ID, Label: opt.Label})
		}
		form.Fields = append(form.Fields, field)
	}

	var routeDocs []formRouteDoc
	if len(rec.Routes) > 0 {
		if err := json.Unmarshal(rec.Routes, &routeDocs); err != nil {
			return nil, fmt.Errorf("failed to decode routes of form %s: %w", rec.ID, err)
		}
	}
	for _, doc := range routeDocs {
		query, err := routing.ParseQuery(doc.QueryValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse query of route %s: %w", doc.ID, err)
		}
		fallback, err := routing.ParseQuery(doc.FallbackQueryValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fallback query of route %s: %w", doc.ID, err)
		}
		form.Routes = append(form.Routes, routing.Route{
			ID: doc.ID,
			Action: routing.RouteAction{
				EventTypeID:  doc.Action.EventTypeID,
				RedirectKind: doc.Action.Type,
			},
			AttributesQuery: query,
			FallbackQuery:   fallback,
		})
	}

	return form, nil
}

// FormRecordByID fetches one raw form record.
func (s *PostgresStore) FormRecordByID(ctx context.Context, id string) (*FormRecord, error) {
	query := `
		SELECT id, team_id, name, fields, routes, updated_at
		FROM routing_forms
		WHERE id = $1
	`

	var rec FormRecord
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.TeamID,
		&rec.Name,
		&rec.Fields,
		&rec.Routes,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("routing form %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch routing form: %w", err)
	}

	return &rec, nil
}

// ListFormRecords retrieves every routing form, ordered by id for
// deterministic sync cycles.
func (s *PostgresStore) ListFormRecords(ctx context.Context) ([]*FormRecord, error) {
	query := `
		SELECT id, team_id, name, fields, routes, updated_at
		FROM routing_forms
		ORDER BY id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing forms: %w", err)
	}
	// Ensure rows are closed to prevent connection leaks in the pool.
	defer rows.Close()

	var records []*FormRecord
	for rows.Next() {
		var rec FormRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.TeamID,
			&rec.Name,
			&rec.Fields,
			&rec.Routes,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan routing form row: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// FormByID fetches and decodes one routing form.
func (s *PostgresStore) FormByID(ctx context.Context, id string) (*routing.Form, error) {
	rec, err := s.FormRecordByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return DecodeForm(rec)
}
