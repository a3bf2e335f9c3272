package app

import (
	"context"
	"sync"

	"domino-community/internal/community"
	"domino-community/internal/shared/alert"
)

type DetailsSnapshot struct {
	Details    *community.Details
	Loading    bool
	Refreshing bool
}

// CommunityDetailsScreen shows one community with its competitions. Like
// the lists, a failed load keeps whatever was shown before.
type CommunityDetailsScreen struct {
	app    *App
	params community.DetailsParams

	mu         sync.Mutex
	details    *community.Details
	loading    bool
	refreshing bool
}

func (a *App) CommunityDetailsScreen(params community.DetailsParams) *CommunityDetailsScreen {
	return &CommunityDetailsScreen{app: a, params: params, loading: true}
}

func (s *CommunityDetailsScreen) Fetch(ctx context.Context) error {
	return s.load(ctx, false)
}

func (s *CommunityDetailsScreen) Refresh(ctx context.Context) error {
	return s.load(ctx, true)
}

func (s *CommunityDetailsScreen) load(ctx context.Context, refresh bool) error {
	logger := s.app.logger.With("operation", "community_details", "community_id", s.params.CommunityID)

	s.mu.Lock()
	if refresh {
		s.refreshing = true
	} else {
		s.loading = true
	}
	s.mu.Unlock()

	details, err := s.app.Communities.Details(ctx, s.params)

	s.mu.Lock()
	s.loading = false
	s.refreshing = false
	if err == nil {
		s.details = details
	}
	s.mu.Unlock()

	if err != nil {
		alert.Error(s.app.opts.Alerter, logger, err, community.MsgDetailsFailed)
		return err
	}
	return nil
}

func (s *CommunityDetailsScreen) Snapshot() DetailsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DetailsSnapshot{Details: s.details, Loading: s.loading, Refreshing: s.refreshing}
}
