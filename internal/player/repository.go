package player

import (
	"context"
	"log/slog"
	"strings"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"

	"golang.org/x/sync/errgroup"
)

const resolveConcurrency = 4

type Repository struct {
	records gateway.Records
}

func NewRepository(records gateway.Records) *Repository {
	logger := slog.With("component", "player_repository", "operation", "init")
	logger.Debug("Initializing player repository")
	return &Repository{records: records}
}

// List returns every player, newest first, with the names of their
// communities.
func (r *Repository) List(ctx context.Context) ([]Player, error) {
	logger := slog.With("component", "player_repository", "operation", "list")

	rows, err := r.records.Select(ctx, gateway.Players, gateway.Query{
		Order: []gateway.Order{gateway.Desc("created_at")},
	})
	if err != nil {
		logger.Error("Failed to list players", "error", err)
		return nil, err
	}
	players := gateway.Decode[Player](gateway.Players, rows)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i := range players {
		g.Go(func() error {
			names, err := r.communityNames(gctx, players[i].ID)
			if err != nil {
				return err
			}
			players[i].Communities = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Failed to resolve player communities", "error", err)
		return nil, err
	}

	logger.Debug("Players retrieved", "count", len(players))
	return players, nil
}

func (r *Repository) communityNames(ctx context.Context, playerID string) ([]string, error) {
	rows, err := r.records.Select(ctx, gateway.PlayerCommunities, gateway.Query{
		Columns: []string{"id", "community_id"},
		Filters: []gateway.Filter{gateway.Eq("player_id", playerID)},
	})
	if err != nil {
		return nil, err
	}
	links := gateway.Decode[Link](gateway.PlayerCommunities, rows)
	if len(links) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.CommunityID
	}
	rows, err = r.records.Select(ctx, gateway.Communities, gateway.Query{
		Columns: []string{"id", "name"},
		Filters: []gateway.Filter{gateway.In("id", ids...)},
		Order:   []gateway.Order{gateway.Asc("name")},
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Repository) Create(ctx context.Context, input AddInput) (*Player, error) {
	logger := slog.With("component", "player_repository", "operation", "create")

	record := gateway.Record{
		"name":         strings.TrimSpace(input.Name),
		"nickname":     optional(input.Nickname),
		"phone":        strings.TrimSpace(input.Phone),
		"games_played": 0,
		"games_won":    0,
	}

	rows, err := r.records.Insert(ctx, gateway.Players, record)
	if err != nil {
		logger.Error("Failed to create player", "error", err)
		return nil, err
	}

	created := gateway.Decode[Player](gateway.Players, rows)
	if len(created) == 0 {
		return nil, errors.External("backend returned no player")
	}

	logger.Info("Player created", "player_id", created[0].ID)
	return &created[0], nil
}

// Link inserts the player-community links. Repeated pairs in links are sent
// once.
func (r *Repository) Link(ctx context.Context, links []Link) error {
	seen := make(map[Link]bool, len(links))
	records := make([]gateway.Record, 0, len(links))
	for _, l := range links {
		key := Link{PlayerID: l.PlayerID, CommunityID: l.CommunityID}
		if key.PlayerID == "" || key.CommunityID == "" || seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, gateway.Record{"player_id": key.PlayerID, "community_id": key.CommunityID})
	}
	if len(records) == 0 {
		return nil
	}

	if _, err := r.records.Insert(ctx, gateway.PlayerCommunities, records...); err != nil {
		slog.With("component", "player_repository", "operation", "link").
			Error("Failed to link player to communities", "error", err, "links", len(records))
		return err
	}
	return nil
}

func optional(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
