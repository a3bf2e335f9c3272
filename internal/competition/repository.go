package competition

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"
)

type Repository struct {
	records gateway.Records
}

func NewRepository(records gateway.Records) *Repository {
	logger := slog.With("component", "competition_repository", "operation", "init")
	logger.Debug("Initializing competition repository")
	return &Repository{records: records}
}

func (r *Repository) ListByCommunity(ctx context.Context, communityID string) ([]Competition, error) {
	logger := slog.With("component", "competition_repository", "operation", "list_by_community", "community_id", communityID)

	rows, err := r.records.Select(ctx, gateway.Competitions, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("community_id", communityID)},
		Order:   []gateway.Order{gateway.Desc("start_date")},
	})
	if err != nil {
		logger.Error("Failed to list competitions", "error", err)
		return nil, err
	}

	competitions := gateway.Decode[Competition](gateway.Competitions, rows)
	logger.Debug("Competitions retrieved", "count", len(competitions))
	return competitions, nil
}

func (r *Repository) Create(ctx context.Context, input CreateInput) (*Competition, error) {
	logger := slog.With("component", "competition_repository", "operation", "create", "community_id", input.CommunityID)

	name := strings.TrimSpace(input.Name)
	if input.CommunityID == "" || name == "" || input.StartDate.IsZero() {
		return nil, errors.Validation("Competition name and start date are required")
	}

	record := gateway.Record{
		"community_id": input.CommunityID,
		"name":         name,
		"description":  optional(input.Description),
		"start_date":   input.StartDate.UTC().Format(time.RFC3339),
		"status":       StatusUpcoming.String(),
	}
	if input.EndDate != nil {
		record["end_date"] = input.EndDate.UTC().Format(time.RFC3339)
	}

	rows, err := r.records.Insert(ctx, gateway.Competitions, record)
	if err != nil {
		logger.Error("Failed to create competition", "error", err)
		return nil, err
	}

	created := gateway.Decode[Competition](gateway.Competitions, rows)
	if len(created) == 0 {
		return nil, errors.External("backend returned no competition")
	}

	logger.Info("Competition created", "competition_id", created[0].ID)
	return &created[0], nil
}

func optional(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
