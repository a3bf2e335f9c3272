package community

import (
	"context"
	"log/slog"
	"strings"

	"domino-community/internal/competition"
	"domino-community/internal/profile"
	"domino-community/internal/shared/errors"

	"golang.org/x/sync/errgroup"
)

const countConcurrency = 4

type Service struct {
	repo         *Repository
	competitions *competition.Repository
	logger       *slog.Logger
}

func NewService(repo *Repository, competitions *competition.Repository, logger *slog.Logger) *Service {
	logger.Debug("Initializing community service")

	return &Service{
		repo:         repo,
		competitions: competitions,
		logger:       logger,
	}
}

// MyCommunities lists the communities the identity created, newest first,
// with their member counts.
func (s *Service) MyCommunities(ctx context.Context, identity profile.Identity) ([]Summary, error) {
	logger := s.logger.With("component", "community_service", "operation", "my_communities", "user_id", identity.ID)

	communities, err := s.repo.ListByCreator(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, len(communities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)
	for i, c := range communities {
		summaries[i] = Summary{Community: c, CreatorEmail: identity.Email}
		g.Go(func() error {
			n, err := s.repo.MemberCount(gctx, c.ID)
			if err != nil {
				return err
			}
			summaries[i].MemberCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Failed to count members", "error", err)
		return nil, err
	}

	logger.Debug("Communities summarized", "count", len(summaries))
	return summaries, nil
}

// Discover lists every community, newest first, with its distance from origin.
func (s *Service) Discover(ctx context.Context, origin Point) ([]Nearby, error) {
	communities, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	nearby := make([]Nearby, len(communities))
	for i, c := range communities {
		nearby[i] = Nearby{Community: c}
		if at, ok := c.Location(); ok {
			d := DistanceKm(origin, at)
			nearby[i].DistanceKm = &d
		}
	}
	return nearby, nil
}

func (s *Service) Details(ctx context.Context, params DetailsParams) (*Details, error) {
	logger := s.logger.With("component", "community_service", "operation", "details", "community_id", params.CommunityID)

	community, err := s.repo.GetByID(ctx, params.CommunityID)
	if err != nil {
		return nil, err
	}

	details := &Details{Community: *community}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		competitions, err := s.competitions.ListByCommunity(gctx, community.ID)
		details.Competitions = competitions
		return err
	})
	g.Go(func() error {
		n, err := s.repo.MemberCount(gctx, community.ID)
		details.MemberCount = n
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("Failed to load community details", "error", err)
		return nil, err
	}

	return details, nil
}

func (s *Service) Create(ctx context.Context, identity profile.Identity, input CreateInput) (*Community, error) {
	if identity.ID == "" {
		return nil, errors.Unauthorized("User not authenticated")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.Validation(MsgNameRequired)
	}
	return s.repo.Create(ctx, identity.ID, input)
}

// Names lists the identity's communities for the player form's picker.
func (s *Service) Names(ctx context.Context, identity profile.Identity) ([]Community, error) {
	return s.repo.ListNames(ctx, identity.ID)
}

const (
	MsgNameRequired  = "Please fill in the community name"
	MsgCreated       = "Community created successfully!"
	MsgCreateFailed  = "Could not create community. Try again."
	MsgDetailsFailed = "Could not load community details."
	MsgListFailed    = "Could not load communities."
)
