package player

import (
	"context"
	"log/slog"
	"strings"

	"domino-community/internal/shared/errors"
)

type Service struct {
	repo   *Repository
	logger *slog.Logger
}

func NewService(repo *Repository, logger *slog.Logger) *Service {
	logger.Debug("Initializing player service")

	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Roster(ctx context.Context) ([]Player, error) {
	return s.repo.List(ctx)
}

// AddPlayer inserts the player and then links it to the selected
// communities. When linking fails the player stays created.
func (s *Service) AddPlayer(ctx context.Context, input AddInput) (*Player, error) {
	logger := s.logger.With("component", "player_service", "operation", "add_player")

	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.Validation(MsgNameRequired)
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, errors.Validation(MsgPhoneRequired)
	}

	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(input.Communities))
	for _, id := range input.Communities {
		links = append(links, Link{PlayerID: created.ID, CommunityID: id})
	}
	if err := s.repo.Link(ctx, links); err != nil {
		logger.Warn("Player created without all community links", "player_id", created.ID)
		return created, err
	}

	logger.Info("Player added", "player_id", created.ID, "communities", len(links))
	return created, nil
}
