package profile

import (
	"context"
	"log/slog"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"
)

type Repository struct {
	records gateway.Records
}

func NewRepository(records gateway.Records) *Repository {
	logger := slog.With("component", "profile_repository", "operation", "init")
	logger.Debug("Initializing profile repository")
	return &Repository{records: records}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Identity, error) {
	logger := slog.With("component", "profile_repository", "operation", "get_by_id", "user_id", id)

	rows, err := r.records.Select(ctx, gateway.Profiles, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		logger.Error("Failed to fetch profile", "error", err)
		return nil, err
	}

	identities := gateway.Decode[Identity](gateway.Profiles, rows)
	if len(identities) == 0 {
		return nil, errors.NotFoundf("profile not found: %s", id)
	}
	return &identities[0], nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.records.Count(ctx, gateway.Profiles)
}

func (r *Repository) Create(ctx context.Context, identity Identity) (*Identity, error) {
	logger := slog.With("component", "profile_repository", "operation", "create", "user_id", identity.ID)

	rows, err := r.records.Insert(ctx, gateway.Profiles, gateway.Record{
		"id":    identity.ID,
		"name":  identity.Name,
		"email": identity.Email,
		"role":  identity.Role.String(),
	})
	if err != nil {
		logger.Error("Failed to create profile", "error", err)
		return nil, err
	}

	created := gateway.Decode[Identity](gateway.Profiles, rows)
	if len(created) == 0 {
		return &identity, nil
	}

	logger.Info("Profile created", "role", created[0].Role)
	return &created[0], nil
}
