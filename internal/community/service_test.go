package community

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"domino-community/internal/competition"
	"domino-community/internal/gateway"
	"domino-community/internal/gateway/memgateway"
	"domino-community/internal/profile"
	"domino-community/internal/shared/errors"

	"github.com/go-playground/assert/v2"
)

func newService(g *memgateway.Gateway) *Service {
	return NewService(NewRepository(g), competition.NewRepository(g), slog.Default())
}

var owner = profile.Identity{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: profile.RoleAdmin}

func TestMyCommunitiesNewestFirstWithCounts(t *testing.T) {
	g := memgateway.New()
	g.Seed(gateway.Communities,
		gateway.Record{"id": "c1", "name": "Old Club", "created_by": "u1", "created_at": "2025-01-01T00:00:00Z"},
		gateway.Record{"id": "c2", "name": "Someone Else", "created_by": "u2", "created_at": "2025-01-02T00:00:00Z"},
		gateway.Record{"id": "c3", "name": "New Club", "created_by": "u1", "created_at": "2025-01-03T00:00:00Z"},
	)
	g.Seed(gateway.PlayerCommunities,
		gateway.Record{"player_id": "p1", "community_id": "c1"},
		gateway.Record{"player_id": "p2", "community_id": "c1"},
		gateway.Record{"player_id": "p1", "community_id": "c3"},
	)

	summaries, err := newService(g).MyCommunities(context.Background(), owner)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(summaries), 2)
	assert.Equal(t, summaries[0].Name, "New Club")
	assert.Equal(t, summaries[0].MembersLabel(), "1 member")
	assert.Equal(t, summaries[1].MembersLabel(), "2 members")
	assert.Equal(t, summaries[1].CreatorEmail, "ana@example.com")
	assert.Equal(t, g.Calls("count"), 2)
}

func TestMyCommunitiesFailsWhenCountFails(t *testing.T) {
	g := memgateway.New()
	g.Seed(gateway.Communities, gateway.Record{"id": "c1", "name": "Club", "created_by": "u1"})
	g.SetHook(func(ctx context.Context, op string, collection gateway.Collection) error {
		if op == "count" {
			return errors.External("network down")
		}
		return nil
	})

	_, err := newService(g).MyCommunities(context.Background(), owner)
	assert.Equal(t, errors.IsRemote(err), true)
}

func TestDiscoverMeasuresFromOrigin(t *testing.T) {
	g := memgateway.New()
	g.Seed(gateway.Communities,
		gateway.Record{"id": "c1", "name": "Santo Domingo", "latitude": 18.4861, "longitude": -69.9312, "created_by": "u2"},
		gateway.Record{"id": "c2", "name": "Nowhere", "created_by": "u2"},
	)

	origin := Point{Latitude: 19.4517, Longitude: -70.6970}
	nearby, err := newService(g).Discover(context.Background(), origin)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(nearby), 2)
	assert.Equal(t, nearby[0].Name, "Nowhere")
	assert.Equal(t, nearby[0].DistanceKm == nil, true)
	assert.Equal(t, math.Abs(*nearby[1].DistanceKm-134) < 3, true)

	assert.Equal(t, WithinDistance(nearby[0], 500), false)
	assert.Equal(t, WithinDistance(nearby[1], 150), true)
	assert.Equal(t, WithinDistance(nearby[1], 100), false)
}

func TestDetailsCombinesCompetitionsAndMembers(t *testing.T) {
	g := memgateway.New()
	g.Seed(gateway.Communities, gateway.Record{"id": "c1", "name": "Club", "created_by": "u1"})
	g.Seed(gateway.Competitions,
		gateway.Record{"id": "k1", "community_id": "c1", "name": "Cup", "start_date": "2025-03-01T00:00:00Z", "status": "upcoming"},
	)
	g.Seed(gateway.PlayerCommunities, gateway.Record{"player_id": "p1", "community_id": "c1"})

	svc := newService(g)
	details, err := svc.Details(context.Background(), DetailsParams{CommunityID: "c1"})
	assert.Equal(t, err, nil)
	assert.Equal(t, details.Name, "Club")
	assert.Equal(t, len(details.Competitions), 1)
	assert.Equal(t, details.MemberCount, 1)

	_, err = svc.Details(context.Background(), DetailsParams{CommunityID: "missing"})
	assert.Equal(t, errors.GetType(err), errors.ErrorTypeNotFound)
}

func TestCreateStoresNullsAndCreator(t *testing.T) {
	g := memgateway.New()
	svc := newService(g)

	created, err := svc.Create(context.Background(), owner, CreateInput{Name: " Club ", Description: "  "})
	assert.Equal(t, err, nil)
	assert.Equal(t, created.Name, "Club")
	assert.Equal(t, created.CreatedBy, "u1")
	assert.Equal(t, created.Description == nil, true)
	assert.Equal(t, created.WhatsAppGroupID == nil, true)

	_, err = svc.Create(context.Background(), owner, CreateInput{Name: " "})
	assert.Equal(t, errors.Message(err), MsgNameRequired)

	_, err = svc.Create(context.Background(), profile.Identity{}, CreateInput{Name: "Club"})
	assert.Equal(t, errors.IsAuth(err), true)
	assert.Equal(t, g.Calls("insert"), 1)
}

func TestDistanceKmIsSymmetric(t *testing.T) {
	a := Point{Latitude: 0, Longitude: 0}
	b := Point{Latitude: 0, Longitude: 1}
	assert.Equal(t, DistanceKm(a, a), 0.0)
	assert.Equal(t, math.Abs(DistanceKm(a, b)-111.19) < 0.1, true)
	assert.Equal(t, DistanceKm(a, b), DistanceKm(b, a))
}
