package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondohq/rondo/internal/matching"
	"github.com/rondohq/rondo/internal/queue"
	"github.com/rondohq/rondo/internal/routing"
	"github.com/rondohq/rondo/internal/selector"
)

// fakeRepo backs every source interface of the service plus the matcher's
// attribute catalog, so one fixture drives a whole report end to end.
type fakeRepo struct {
	forms         map[string]*routing.Form
	orgByUser     map[int64]int64
	teamAttrs     map[int64][]routing.Attribute
	weighted      map[int64]*routing.Attribute
	attrOptions   map[string][]routing.AttributeOption
	memberOptions map[string]map[int64][]string
	teamMembers   map[int64][]int64
	eventTypes    map[int64]*EventType
	users         map[int64]User
	assignments   map[int64]map[int64]int

	formErr error
}

func (f *fakeRepo) FormByID(_ context.Context, id string) (*routing.Form, error) {
	if f.formErr != nil {
		return nil, f.formErr
	}
	form, ok := f.forms[id]
	if !ok {
		return nil, errors.New("form not found")
	}
	return form, nil
}

func (f *fakeRepo) OrgIDForUser(_ context.Context, userID int64) (int64, error) {
	return f.orgByUser[userID], nil
}

func (f *fakeRepo) TeamMemberIDs(_ context.Context, teamID int64) ([]int64, error) {
	return f.teamMembers[teamID], nil
}

func (f *fakeRepo) WeightedAttribute(_ context.Context, teamID int64) (*routing.Attribute, error) {
	return f.weighted[teamID], nil
}

func (f *fakeRepo) TeamAttributes(_ context.Context, teamID int64) ([]routing.Attribute, error) {
	return f.teamAttrs[teamID], nil
}

func (f *fakeRepo) AttributeOptions(_ context.Context, attributeID string) ([]routing.AttributeOption, error) {
	return f.attrOptions[attributeID], nil
}

func (f *fakeRepo) UserOptions(_ context.Context, attributeID string, userID int64) ([]routing.AttributeOption, error) {
	var selected []routing.AttributeOption
	for _, id := range f.memberOptions[attributeID][userID] {
		for _, opt := range f.attrOptions[attributeID] {
			if opt.ID == id {
				selected = append(selected, opt)
			}
		}
	}
	return selected, nil
}

func (f *fakeRepo) MemberOptions(_ context.Context, attributeID string, memberID int64) ([]string, error) {
	return f.memberOptions[attributeID][memberID], nil
}

func (f *fakeRepo) SchedulingInfo(_ context.Context, eventTypeID int64) (*queue.SchedulingInfo, error) {
	et, ok := f.eventTypes[eventTypeID]
	if !ok {
		return nil, nil
	}
	return &queue.SchedulingInfo{
		SchedulingType:   et.SchedulingType,
		RRWeightsEnabled: et.RRWeightsEnabled,
	}, nil
}

func (f *fakeRepo) EventTypeWithHosts(_ context.Context, id int64) (*EventType, error) {
	return f.eventTypes[id], nil
}

func (f *fakeRepo) UsersByIDs(_ context.Context, ids []int64) ([]User, error) {
	var users []User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (f *fakeRepo) AssignmentCounts(_ context.Context, eventTypeID int64, _ []int64) (map[int64]int, error) {
	return f.assignments[eventTypeID], nil
}

// regionFixture models a team routed by a weight-enabled Region attribute:
// hosts 101 and 102 are East, host 103 is West, and one round-robin route
// gates on the Location form field.
func regionFixture() *fakeRepo {
	attr := routing.Attribute{ID: "attr-region", TeamID: 1, Name: "Region", IsWeightsEnabled: true}

	form := &routing.Form{
		ID:     "form-1",
		TeamID: 10,
		Name:   "Regional routing",
		Fields: []routing.FormField{
			{
				ID:    "f-loc",
				Label: "Location",
				Options: []routing.FieldOption{
					{ID: "fo-east", Label: "East"},
					{ID: "fo-west", Label: "West"},
				},
			},
		},
		Routes: []routing.Route{
			{
				ID:     "r-1",
				Action: routing.RouteAction{EventTypeID: 500, RedirectKind: "eventTypeRedirectUrl"},
				AttributesQuery: &routing.QueryNode{Group: &routing.GroupNode{
					Combinator: routing.CombinatorAnd,
					Children: []routing.QueryNode{
						{Leaf: &routing.LeafNode{
							ID:       "leaf-1",
							Field:    "attr-region",
							Operator: routing.OperatorSelectAnyIn,
							Values:   []string{"{field:f-loc}"},
						}},
					},
				}},
			},
		},
	}

	return &fakeRepo{
		forms:     map[string]*routing.Form{"form-1": form},
		orgByUser: map[int64]int64{101: 1, 102: 1, 103: 1},
		teamAttrs: map[int64][]routing.Attribute{10: {attr}},
		weighted:  map[int64]*routing.Attribute{1: &attr},
		attrOptions: map[string][]routing.AttributeOption{
			"attr-region": {
				{ID: "ao-east", AttributeID: "attr-region", Value: "East"},
				{ID: "ao-west", AttributeID: "attr-region", Value: "West"},
			},
		},
		memberOptions: map[string]map[int64][]string{
			"attr-region": {
				101: {"ao-east", "ao-west"},
				102: {"ao-east"},
				103: {"ao-west"},
			},
		},
		teamMembers: map[int64][]int64{10: {101, 102, 103}},
		eventTypes: map[int64]*EventType{
			500: {
				ID:               500,
				Title:            "Regional intake",
				SchedulingType:   queue.SchedulingTypeRoundRobin,
				RRWeightsEnabled: true,
				Hosts: []selector.Host{
					{UserID: 101, Weight: 2, Priority: 1},
					{UserID: 102, Weight: 1, Priority: 1},
					{UserID: 103, Weight: 1, Priority: 1},
				},
			},
		},
		users: map[int64]User{
			101: {ID: 101, Name: "Host One", Email: "one@example.com"},
			102: {ID: 102, Name: "Host Two", Email: "two@example.com"},
			103: {ID: 103, Name: "Host Three", Email: "three@example.com"},
		},
		assignments: map[int64]map[int64]int{
			500: {101: 1, 102: 1},
		},
	}
}

func newTestService(repo *fakeRepo) *Service {
	return New(Deps{
		Forms:      repo,
		Attributes: repo,
		Teams:      repo,
		Events:     repo,
		Users:      repo,
		Bookings:   repo,
		Builder:    queue.New(repo, nil),
		Matcher:    matching.New(repo, nil),
	})
}

func TestVirtualQueueReport(t *testing.T) {
	t.Run("Should compute one ordered queue result per bound option", func(t *testing.T) {
		repo := regionFixture()
		svc := newTestService(repo)

		// User 101 holds both options, so both queues materialize.
		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		require.NotNil(t, report)

		assert.Equal(t, "form-1", report.FormID)
		assert.Equal(t, int64(10), report.TeamID)
		assert.Equal(t, "attr-region", report.AttributeID)
		require.Len(t, report.Queues, 2)

		east := report.Queues[0]
		assert.Equal(t, "r-1", east.RouteID)
		assert.Equal(t, int64(500), east.EventTypeID)
		assert.Equal(t, "f-loc", east.FieldID)
		assert.Equal(t, "Location", east.FieldLabel)
		assert.Equal(t, "ao-east", east.OptionID)
		assert.Equal(t, "East", east.OptionLabel)
		// Both East hosts carry one assignment; 101's double weight makes it
		// the more due host.
		require.Len(t, east.Members, 2)
		assert.Equal(t, int64(101), east.Members[0].ID)
		assert.Equal(t, int64(102), east.Members[1].ID)
		assert.Equal(t, "Host One", east.Members[0].Name)
		assert.Equal(t, 2, east.PerUser[101].Weight)
		assert.Equal(t, 1, east.PerUser[101].Assignments)

		west := report.Queues[1]
		assert.Equal(t, "ao-west", west.OptionID)
		require.Len(t, west.Members, 1)
		assert.Equal(t, int64(103), west.Members[0].ID)
	})

	t.Run("Should restrict each queue to the user's own options", func(t *testing.T) {
		repo := regionFixture()
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 103, "form-1")
		require.NoError(t, err)
		require.NotNil(t, report)

		// User 103 is West only: the East simulation never runs.
		require.Len(t, report.Queues, 1)
		assert.Equal(t, "ao-west", report.Queues[0].OptionID)
		require.Len(t, report.Queues[0].Members, 1)
		assert.Equal(t, int64(103), report.Queues[0].Members[0].ID)
	})

	t.Run("Should short-circuit when the user has no organization", func(t *testing.T) {
		repo := regionFixture()
		repo.orgByUser[101] = 0
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		assert.Nil(t, report)
	})

	t.Run("Should short-circuit when no attribute has weights enabled", func(t *testing.T) {
		repo := regionFixture()
		repo.weighted = map[int64]*routing.Attribute{}
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		assert.Nil(t, report)
	})

	t.Run("Should short-circuit when the user holds no attribute options", func(t *testing.T) {
		repo := regionFixture()
		repo.memberOptions["attr-region"][101] = nil
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		assert.Nil(t, report)
	})

	t.Run("Should fail when the form cannot be resolved", func(t *testing.T) {
		repo := regionFixture()
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-missing")
		require.Error(t, err)
		assert.Nil(t, report)
	})

	t.Run("Should omit a queue whose matches diverge from the host pool", func(t *testing.T) {
		repo := regionFixture()
		// Host 102 still matches East by attribute but is gone from the
		// event type's host pool.
		repo.eventTypes[500].Hosts = []selector.Host{
			{UserID: 101, Weight: 2, Priority: 1},
			{UserID: 103, Weight: 1, Priority: 1},
		}
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		require.NotNil(t, report)
		// The whole (route, field) queue is dropped; the report survives.
		assert.Empty(t, report.Queues)
	})

	t.Run("Should report an empty members list when nobody matches an option", func(t *testing.T) {
		repo := regionFixture()
		// The requesting user holds West but is not in the candidate pool,
		// and no remaining member holds it either.
		repo.teamMembers[10] = []int64{102, 103}
		repo.memberOptions["attr-region"][103] = nil
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		require.NotNil(t, report)
		require.Len(t, report.Queues, 2)

		west := report.Queues[1]
		assert.Equal(t, "ao-west", west.OptionID)
		assert.Empty(t, west.Members)
	})

	t.Run("Should place every matched member in exactly the queues of their options", func(t *testing.T) {
		repo := regionFixture()
		svc := newTestService(repo)

		report, err := svc.VirtualQueueReport(context.Background(), 101, "form-1")
		require.NoError(t, err)
		require.NotNil(t, report)

		membership := map[string]map[int64]bool{}
		for _, q := range report.Queues {
			membership[q.OptionID] = map[int64]bool{}
			for _, m := range q.Members {
				membership[q.OptionID][m.ID] = true
			}
		}

		// 101 holds both options, 102 only East, 103 only West.
		assert.True(t, membership["ao-east"][101])
		assert.True(t, membership["ao-west"][101])
		assert.True(t, membership["ao-east"][102])
		assert.False(t, membership["ao-west"][102])
		assert.False(t, membership["ao-east"][103])
		assert.True(t, membership["ao-west"][103])
	})
}

func TestMatchPreview(t *testing.T) {
	t.Run("Should return the matched members with their firing leaves", func(t *testing.T) {
		repo := regionFixture()
		svc := newTestService(repo)

		preview, err := svc.MatchPreview(context.Background(), "form-1", "r-1", routing.FormResponse{
			"f-loc": {Label: "Location", Value: "fo-east"},
		})
		require.NoError(t, err)
		require.NotNil(t, preview)

		assert.Equal(t, "r-1", preview.RouteID)
		assert.False(t, preview.UsedFallback)
		require.Len(t, preview.Members, 2)
		assert.Equal(t, int64(101), preview.Members[0].ID)
		assert.Equal(t, int64(102), preview.Members[1].ID)
		assert.Equal(t, []string{"leaf-1"}, preview.Trace[101])
	})

	t.Run("Should report fallback usage when the primary logic matches nobody", func(t *testing.T) {
		repo := regionFixture()
		repo.forms["form-1"].Routes[0].FallbackQuery = nil
		repo.forms["form-1"].Routes[0].FallbackQuery = &routing.QueryNode{Group: &routing.GroupNode{
			Combinator: routing.CombinatorAnd,
		}}
		svc := newTestService(repo)

		// No answer for the referenced field: the primary leaf binds nothing.
		preview, err := svc.MatchPreview(context.Background(), "form-1", "r-1", routing.FormResponse{})
		require.NoError(t, err)
		require.NotNil(t, preview)

		assert.True(t, preview.UsedFallback)
		assert.Len(t, preview.Members, 3)
	})

	t.Run("Should fail for a route the form does not contain", func(t *testing.T) {
		repo := regionFixture()
		svc := newTestService(repo)

		preview, err := svc.MatchPreview(context.Background(), "form-1", "r-missing", routing.FormResponse{})
		require.ErrorIs(t, err, ErrRouteNotFound)
		assert.Nil(t, preview)
	})
}
