package community

import (
	"context"
	"log/slog"
	"strings"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"
)

type Repository struct {
	records gateway.Records
}

func NewRepository(records gateway.Records) *Repository {
	logger := slog.With("component", "community_repository", "operation", "init")
	logger.Debug("Initializing community repository")
	return &Repository{records: records}
}

func (r *Repository) ListByCreator(ctx context.Context, creatorID string) ([]Community, error) {
	logger := slog.With("component", "community_repository", "operation", "list_by_creator", "creator_id", creatorID)

	rows, err := r.records.Select(ctx, gateway.Communities, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("created_by", creatorID)},
		Order:   []gateway.Order{gateway.Desc("created_at")},
	})
	if err != nil {
		logger.Error("Failed to list communities", "error", err)
		return nil, err
	}

	communities := gateway.Decode[Community](gateway.Communities, rows)
	logger.Debug("Communities retrieved", "count", len(communities))
	return communities, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]Community, error) {
	logger := slog.With("component", "community_repository", "operation", "list_all")

	rows, err := r.records.Select(ctx, gateway.Communities, gateway.Query{
		Order: []gateway.Order{gateway.Desc("created_at")},
	})
	if err != nil {
		logger.Error("Failed to list communities", "error", err)
		return nil, err
	}

	return gateway.Decode[Community](gateway.Communities, rows), nil
}

// ListNames returns the id and name of the creator's communities, by name.
func (r *Repository) ListNames(ctx context.Context, creatorID string) ([]Community, error) {
	rows, err := r.records.Select(ctx, gateway.Communities, gateway.Query{
		Columns: []string{"id", "name"},
		Filters: []gateway.Filter{gateway.Eq("created_by", creatorID)},
		Order:   []gateway.Order{gateway.Asc("name")},
	})
	if err != nil {
		return nil, err
	}
	return gateway.Decode[Community](gateway.Communities, rows), nil
}

func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]Community, error) {
	if len(ids) == 0 {
		return []Community{}, nil
	}

	rows, err := r.records.Select(ctx, gateway.Communities, gateway.Query{
		Columns: []string{"id", "name"},
		Filters: []gateway.Filter{gateway.In("id", ids...)},
		Order:   []gateway.Order{gateway.Asc("name")},
	})
	if err != nil {
		return nil, err
	}
	return gateway.Decode[Community](gateway.Communities, rows), nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Community, error) {
	logger := slog.With("component", "community_repository", "operation", "get_by_id", "community_id", id)

	rows, err := r.records.Select(ctx, gateway.Communities, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		logger.Error("Failed to fetch community", "error", err)
		return nil, err
	}

	communities := gateway.Decode[Community](gateway.Communities, rows)
	if len(communities) == 0 {
		return nil, errors.NotFoundf("community not found: %s", id)
	}
	return &communities[0], nil
}

func (r *Repository) MemberCount(ctx context.Context, id string) (int, error) {
	return r.records.Count(ctx, gateway.PlayerCommunities, gateway.Eq("community_id", id))
}

func (r *Repository) Create(ctx context.Context, creatorID string, input CreateInput) (*Community, error) {
	logger := slog.With("component", "community_repository", "operation", "create", "creator_id", creatorID)

	record := gateway.Record{
		"name":              strings.TrimSpace(input.Name),
		"description":       optional(input.Description),
		"whatsapp_group_id": optional(input.WhatsAppGroupID),
		"created_by":        creatorID,
	}
	if input.Latitude != nil && input.Longitude != nil {
		record["latitude"] = *input.Latitude
		record["longitude"] = *input.Longitude
	}

	rows, err := r.records.Insert(ctx, gateway.Communities, record)
	if err != nil {
		logger.Error("Failed to create community", "error", err)
		return nil, err
	}

	created := gateway.Decode[Community](gateway.Communities, rows)
	if len(created) == 0 {
		return nil, errors.External("backend returned no community")
	}

	logger.Info("Community created", "community_id", created[0].ID)
	return &created[0], nil
}

func optional(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
