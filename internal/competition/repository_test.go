package competition

import (
	"context"
	"testing"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/gateway/memgateway"
	"domino-community/internal/shared/errors"

	"github.com/go-playground/assert/v2"
)

func TestCreateDefaultsToUpcoming(t *testing.T) {
	ctx := context.Background()
	g := memgateway.New()
	repo := NewRepository(g)

	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	created, err := repo.Create(ctx, CreateInput{CommunityID: "c1", Name: " Spring Cup ", StartDate: start})
	assert.Equal(t, err, nil)
	assert.Equal(t, created.Name, "Spring Cup")
	assert.Equal(t, created.Status, StatusUpcoming)
	assert.Equal(t, created.Description == nil, true)
	assert.Equal(t, created.StartDate.Equal(start), true)

	_, err = repo.Create(ctx, CreateInput{CommunityID: "c1", StartDate: start})
	assert.Equal(t, errors.IsValidation(err), true)
	assert.Equal(t, g.Calls("insert"), 1)
}

func TestListByCommunityNewestFirst(t *testing.T) {
	g := memgateway.New()
	g.Seed(gateway.Competitions,
		gateway.Record{"id": "k1", "community_id": "c1", "name": "Old", "start_date": "2024-01-01T00:00:00Z", "status": "completed"},
		gateway.Record{"id": "k2", "community_id": "c1", "name": "New", "start_date": "2025-01-01T00:00:00Z", "status": "upcoming"},
		gateway.Record{"id": "k3", "community_id": "c2", "name": "Other", "start_date": "2025-02-01T00:00:00Z", "status": "upcoming"},
		gateway.Record{"id": "k4", "community_id": "c1", "name": "Broken", "start_date": "2025-02-01T00:00:00Z", "status": "cancelled"},
	)

	competitions, err := NewRepository(g).ListByCommunity(context.Background(), "c1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(competitions), 2)
	assert.Equal(t, competitions[0].Name, "New")
	assert.Equal(t, competitions[1].Status.Label(), "Completed")
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("in_progress")
	assert.Equal(t, err, nil)
	assert.Equal(t, status.Label(), "In progress")

	_, err = ParseStatus("cancelled")
	assert.NotEqual(t, err, nil)
}
