//go:build integration

// Package store_test contains integration tests for the Data Access Layer.
// We use the '_test' suffix to enforce black-box testing, ensuring we only
// access the exported API of the store package.
package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondohq/rondo/internal/store"
	"github.com/rondohq/rondo/internal/testsupport"
)

// fixtureIDs collects the generated identifiers of the seeded scenario so
// the subtests can refer to them.
type fixtureIDs struct {
	orgID       int64
	teamID      int64
	alice       int64
	bob         int64
	carol       int64
	attrID      string
	eastOption  string
	westOption  string
	eventTypeID int64
	formID      string
}

// seedScenario inserts one organization with a sub-team of three members,
// a weight-enabled location attribute, a weighted round-robin event type
// and a routing form that points at it.
func seedScenario(ctx context.Context, t *testing.T, ctr *testsupport.PostgresContainer) fixtureIDs {
	t.Helper()

	var ids fixtureIDs
	db := ctr.DB

	// Users
	for _, u := range []struct {
		name  string
		email string
		dst   *int64
	}{
		{"Alice", "alice@example.com", &ids.alice},
		{"Bob", "bob@example.com", &ids.bob},
		{"Carol", "carol@example.com", &ids.carol},
	} {
		err := db.QueryRow(ctx,
			`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`,
			u.name, u.email,
		).Scan(u.dst)
		require.NoError(t, err, "failed to seed user %s", u.name)
	}

	// Organization and sub-team
	err := db.QueryRow(ctx,
		`INSERT INTO teams (name, is_organization) VALUES ('Acme Org', TRUE) RETURNING id`,
	).Scan(&ids.orgID)
	require.NoError(t, err)

	err = db.QueryRow(ctx,
		`INSERT INTO teams (name, parent_id) VALUES ('Sales', $1) RETURNING id`,
		ids.orgID,
	).Scan(&ids.teamID)
	require.NoError(t, err)

	// Memberships. Carol's org membership is pending, so the org must not
	// resolve for her.
	for _, m := range []struct {
		userID   int64
		teamID   int64
		accepted bool
	}{
		{ids.alice, ids.orgID, true},
		{ids.bob, ids.orgID, true},
		{ids.carol, ids.orgID, false},
		{ids.alice, ids.teamID, true},
		{ids.bob, ids.teamID, true},
		{ids.carol, ids.teamID, true},
	} {
		_, err := db.Exec(ctx,
			`INSERT INTO memberships (user_id, team_id, accepted) VALUES ($1, $2, $3)`,
			m.userID, m.teamID, m.accepted,
		)
		require.NoError(t, err)
	}

	// Weight-enabled attribute with two options. Ids are client-generated
	// UUIDs, same as production writes.
	ids.attrID = uuid.NewString()
	_, err = db.Exec(ctx,
		`INSERT INTO attributes (id, team_id, name, is_weights_enabled) VALUES ($1, $2, 'Location', TRUE)`,
		ids.attrID, ids.orgID,
	)
	require.NoError(t, err)

	ids.eastOption = uuid.NewString()
	ids.westOption = uuid.NewString()
	_, err = db.Exec(ctx,
		`INSERT INTO attribute_options (id, attribute_id, value, created_at)
		 VALUES ($1, $3, 'East', now()), ($2, $3, 'West', now() + interval '1 second')`,
		ids.eastOption, ids.westOption, ids.attrID,
	)
	require.NoError(t, err)

	// Alice covers both regions, Bob only East. Carol has no assignment.
	for _, a := range []struct {
		optionID string
		userID   int64
	}{
		{ids.eastOption, ids.alice},
		{ids.westOption, ids.alice},
		{ids.eastOption, ids.bob},
	} {
		_, err := db.Exec(ctx,
			`INSERT INTO attribute_assignments (option_id, user_id) VALUES ($1, $2)`,
			a.optionID, a.userID,
		)
		require.NoError(t, err)
	}

	// Weighted round-robin event type with all three users as hosts.
	err = db.QueryRow(ctx,
		`INSERT INTO event_types (title, scheduling_type, rr_weights_enabled)
		 VALUES ('Sales Call', 'ROUND_ROBIN', TRUE) RETURNING id`,
	).Scan(&ids.eventTypeID)
	require.NoError(t, err)

	for _, h := range []struct {
		userID   int64
		weight   int
		priority int
	}{
		{ids.alice, 200, 2},
		{ids.bob, 100, 3},
		{ids.carol, 100, 2},
	} {
		_, err := db.Exec(ctx,
			`INSERT INTO hosts (event_type_id, user_id, weight, priority) VALUES ($1, $2, $3, $4)`,
			ids.eventTypeID, h.userID, h.weight, h.priority,
		)
		require.NoError(t, err)
	}

	// Bookings inside and outside the current accounting month. Cancelled
	// ones never count.
	_, err = db.Exec(ctx,
		`INSERT INTO bookings (event_type_id, assigned_user_id, status, created_at) VALUES
		 ($1, $2, 'accepted', now()),
		 ($1, $2, 'accepted', now()),
		 ($1, $3, 'cancelled', now()),
		 ($1, $3, 'accepted', now() - interval '2 months')`,
		ids.eventTypeID, ids.alice, ids.bob,
	)
	require.NoError(t, err)

	// Routing form with one attribute-routed field.
	ids.formID = uuid.NewString()
	fields := `[
		{"id": "f-location", "label": "Location", "options": [
			{"id": "fo-east", "label": "East"},
			{"id": "fo-west", "label": "West"}
		]}
	]`
	routes := fmt.Sprintf(`[
		{
			"id": "r-1",
			"action": {"type": "eventTypeRedirectUrl", "eventTypeId": %d},
			"queryValue": {"type": "group", "children1": {
				"rule-1": {"type": "rule", "properties": {
					"field": %q, "operator": "select_equals",
					"value": ["{field:f-location}"], "valueType": ["select"]
				}}
			}}
		}
	]`, ids.eventTypeID, ids.attrID)

	_, err = db.Exec(ctx,
		`INSERT INTO routing_forms (id, team_id, name, fields, routes) VALUES ($1, $2, 'Lead router', $3, $4)`,
		ids.formID, ids.teamID, fields, routes,
	)
	require.NoError(t, err)

	return ids
}

// TestPostgresStore_Integration spins up a real PostgreSQL container once,
// seeds a full routing scenario and runs every repository read against it.
func TestPostgresStore_Integration(t *testing.T) {
	// 1. Infrastructure Setup
	ctx := context.Background()

	// Relative path from 'internal/store' to the 'migrations' folder in root.
	migrationsPath := "../../migrations"

	pgContainer, err := testsupport.StartPostgresContainer(ctx, migrationsPath)
	require.NoError(t, err, "failed to start postgres container")

	// Ensure resource cleanup even if tests fail
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	repo := store.NewPostgresStore(pgContainer.DB, nil)

	// 2. Seed the shared scenario once; the reads below never mutate it.
	ids := seedScenario(ctx, t, pgContainer)

	t.Run("FormByID_DecodesFieldsAndRoutes", func(t *testing.T) {
		form, err := repo.FormByID(ctx, ids.formID)

		require.NoError(t, err)
		assert.Equal(t, ids.formID, form.ID)
		assert.Equal(t, ids.teamID, form.TeamID)
		assert.Equal(t, "Lead router", form.Name)

		require.Len(t, form.Fields, 1)
		assert.Equal(t, "f-location", form.Fields[0].ID)
		require.Len(t, form.Fields[0].Options, 2)
		assert.Equal(t, "East", form.Fields[0].Options[0].Label)

		require.Len(t, form.Routes, 1)
		route := form.Routes[0]
		assert.Equal(t, "r-1", route.ID)
		assert.Equal(t, ids.eventTypeID, route.Action.EventTypeID)
		require.NotNil(t, route.AttributesQuery)
		assert.Nil(t, route.FallbackQuery, "no fallback was seeded")
	})

	t.Run("FormByID_NotFound", func(t *testing.T) {
		_, err := repo.FormByID(ctx, "no-such-form")

		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListFormRecords_ReturnsSeededForm", func(t *testing.T) {
		records, err := repo.ListFormRecords(ctx)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, ids.formID, records[0].ID)
		assert.NotEmpty(t, records[0].Fields)
		assert.NotEmpty(t, records[0].Routes)
		assert.False(t, records[0].UpdatedAt.IsZero())
	})

	t.Run("WeightedAttribute_ReturnsTheEnabledOne", func(t *testing.T) {
		attr, err := repo.WeightedAttribute(ctx, ids.orgID)

		require.NoError(t, err)
		require.NotNil(t, attr)
		assert.Equal(t, ids.attrID, attr.ID)
		assert.Equal(t, "Location", attr.Name)
		assert.True(t, attr.IsWeightsEnabled)
	})

	t.Run("WeightedAttribute_OldestWinsOnConflict", func(t *testing.T) {
		// Arrange: a second weight-enabled attribute created later.
		newer := uuid.NewString()
		_, err := pgContainer.DB.Exec(ctx,
			`INSERT INTO attributes (id, team_id, name, is_weights_enabled, created_at)
			 VALUES ($1, $2, 'Seniority', TRUE, now() + interval '1 hour')`,
			newer, ids.orgID,
		)
		require.NoError(t, err)
		defer func() {
			_, err := pgContainer.DB.Exec(ctx, `DELETE FROM attributes WHERE id = $1`, newer)
			require.NoError(t, err)
		}()

		attr, err := repo.WeightedAttribute(ctx, ids.orgID)

		require.NoError(t, err)
		require.NotNil(t, attr)
		assert.Equal(t, ids.attrID, attr.ID, "the first created attribute must win")
	})

	t.Run("WeightedAttribute_NoneConfigured", func(t *testing.T) {
		attr, err := repo.WeightedAttribute(ctx, ids.teamID)

		require.NoError(t, err)
		assert.Nil(t, attr)
	})

	t.Run("AttributeOptions_CreationOrder", func(t *testing.T) {
		options, err := repo.AttributeOptions(ctx, ids.attrID)

		require.NoError(t, err)
		require.Len(t, options, 2)
		assert.Equal(t, ids.eastOption, options[0].ID)
		assert.Equal(t, "East", options[0].Value)
		assert.Equal(t, ids.westOption, options[1].ID)
		assert.Equal(t, "West", options[1].Value)
	})

	t.Run("UserOptions_PerUserAssignments", func(t *testing.T) {
		aliceOptions, err := repo.UserOptions(ctx, ids.attrID, ids.alice)
		require.NoError(t, err)
		require.Len(t, aliceOptions, 2, "Alice covers both regions")

		bobOptions, err := repo.UserOptions(ctx, ids.attrID, ids.bob)
		require.NoError(t, err)
		require.Len(t, bobOptions, 1)
		assert.Equal(t, "East", bobOptions[0].Value)

		carolOptions, err := repo.UserOptions(ctx, ids.attrID, ids.carol)
		require.NoError(t, err)
		assert.Empty(t, carolOptions, "Carol has no assignment, which is valid")
	})

	t.Run("MemberOptions_ReturnsOptionIDs", func(t *testing.T) {
		got, err := repo.MemberOptions(ctx, ids.attrID, ids.bob)

		require.NoError(t, err)
		assert.Equal(t, []string{ids.eastOption}, got)
	})

	t.Run("OrgIDForUser_AcceptedMembershipOnly", func(t *testing.T) {
		org, err := repo.OrgIDForUser(ctx, ids.alice)
		require.NoError(t, err)
		assert.Equal(t, ids.orgID, org)

		// Carol's org membership is pending.
		org, err = repo.OrgIDForUser(ctx, ids.carol)
		require.NoError(t, err)
		assert.Zero(t, org)
	})

	t.Run("TeamMemberIDs_AscendingOrder", func(t *testing.T) {
		members, err := repo.TeamMemberIDs(ctx, ids.teamID)

		require.NoError(t, err)
		assert.Equal(t, []int64{ids.alice, ids.bob, ids.carol}, members)
	})

	t.Run("UsersByIDs_SkipsUnknownIDs", func(t *testing.T) {
		users, err := repo.UsersByIDs(ctx, []int64{ids.bob, ids.alice, 999999})

		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, ids.alice, users[0].ID, "results come back in ascending id order")
		assert.Equal(t, "Alice", users[0].Name)
		assert.Equal(t, ids.bob, users[1].ID)
	})

	t.Run("SchedulingInfo_ExistingAndMissing", func(t *testing.T) {
		info, err := repo.SchedulingInfo(ctx, ids.eventTypeID)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "ROUND_ROBIN", info.SchedulingType)
		assert.True(t, info.RRWeightsEnabled)

		missing, err := repo.SchedulingInfo(ctx, 999999)
		require.NoError(t, err, "missing event type is not a repository failure")
		assert.Nil(t, missing)
	})

	t.Run("EventTypeWithHosts_FullPool", func(t *testing.T) {
		et, err := repo.EventTypeWithHosts(ctx, ids.eventTypeID)

		require.NoError(t, err)
		require.NotNil(t, et)
		assert.Equal(t, "Sales Call", et.Title)
		require.Len(t, et.Hosts, 3)

		// Ascending user id order.
		assert.Equal(t, ids.alice, et.Hosts[0].UserID)
		assert.Equal(t, 200, et.Hosts[0].Weight)
		assert.Equal(t, ids.bob, et.Hosts[1].UserID)
		assert.Equal(t, 3, et.Hosts[1].Priority)
		assert.Equal(t, ids.carol, et.Hosts[2].UserID)
	})

	t.Run("EventTypeWithHosts_Missing", func(t *testing.T) {
		et, err := repo.EventTypeWithHosts(ctx, 999999)

		require.NoError(t, err)
		assert.Nil(t, et)
	})

	t.Run("AssignmentCounts_CurrentMonthNonCancelled", func(t *testing.T) {
		counts, err := repo.AssignmentCounts(ctx, ids.eventTypeID, []int64{ids.alice, ids.bob, ids.carol})

		require.NoError(t, err)
		assert.Equal(t, 2, counts[ids.alice])
		_, bobCounted := counts[ids.bob]
		assert.False(t, bobCounted, "cancelled and out-of-window bookings must not count")
		_, carolCounted := counts[ids.carol]
		assert.False(t, carolCounted)
	})
}
