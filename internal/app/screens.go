package app

import (
	"context"
	"strings"

	"domino-community/internal/community"
	"domino-community/internal/debounce"
	"domino-community/internal/form"
	"domino-community/internal/listview"
	"domino-community/internal/player"
)

// CommunitiesScreen lists the signed-in identity's communities. The host
// calls List.OnFocus whenever the screen comes back into view.
type CommunitiesScreen struct {
	List *listview.Controller[community.Summary, string]
}

func (a *App) CommunitiesScreen() *CommunitiesScreen {
	load := func(ctx context.Context) ([]community.Summary, error) {
		identity, err := a.Session.RequireIdentity()
		if err != nil {
			return nil, err
		}
		return a.Communities.MyCommunities(ctx, identity)
	}

	return &CommunitiesScreen{
		List: listview.New("communities", load, summaryMatches, listview.Options{
			Alerter:      a.opts.Alerter,
			ErrorMessage: community.MsgListFailed,
		}),
	}
}

func summaryMatches(s community.Summary, query string) bool {
	return strings.Contains(strings.ToLower(s.Name), strings.ToLower(strings.TrimSpace(query)))
}

// DiscoverScreen lists every community, filtered by the distance slider.
// The slider only reaches the filter once it has been left alone.
type DiscoverScreen struct {
	List     *listview.Controller[community.Nearby, float64]
	Distance *debounce.Input[float64]
}

func (a *App) DiscoverScreen() *DiscoverScreen {
	load := func(ctx context.Context) ([]community.Nearby, error) {
		return a.Communities.Discover(ctx, a.opts.Origin)
	}

	s := &DiscoverScreen{
		List: listview.New("discover", load, community.WithinDistance, listview.Options{
			Alerter:      a.opts.Alerter,
			ErrorMessage: community.MsgListFailed,
		}),
	}
	s.List.SetFilter(a.opts.MaxDistanceKm)
	s.Distance = debounce.New(a.opts.MaxDistanceKm, a.opts.DebounceWindow, a.opts.Clock, s.List.SetFilter)
	return s
}

func (s *DiscoverScreen) Close() {
	s.Distance.Dispose()
}

// PlayersScreen is the roster with its debounced search box and the
// add-player form. A successful add refetches the roster.
type PlayersScreen struct {
	List   *listview.Controller[player.Player, string]
	Search *debounce.Input[string]
	Form   *form.Controller[player.AddInput, *player.Player]

	app *App
}

func (a *App) PlayersScreen() *PlayersScreen {
	s := &PlayersScreen{
		List: listview.New("players", a.Players.Roster, player.Matches, listview.Options{
			Alerter:      a.opts.Alerter,
			ErrorMessage: player.MsgListFailed,
		}),
		Form: form.New(a.Players.AddPlayer, form.Options{
			Name: "add_player",
			Messages: map[string]string{
				"name":  player.MsgNameRequired,
				"phone": player.MsgPhoneRequired,
			},
			SuccessMessage: player.MsgAdded,
			ErrorMessage:   player.MsgAddFailed,
			Alerter:        a.opts.Alerter,
		}),
		app: a,
	}
	s.Search = debounce.New("", a.opts.DebounceWindow, a.opts.Clock, s.List.SetFilter)
	s.Form.OnSuccess(func(ctx context.Context, _ *player.Player) {
		// failures are already alerted by the list
		_ = s.List.Refresh(ctx)
	})
	return s
}

// CommunityOptions lists the communities the add-player form can link to.
func (s *PlayersScreen) CommunityOptions(ctx context.Context) ([]community.Community, error) {
	identity, err := s.app.Session.RequireIdentity()
	if err != nil {
		return nil, err
	}
	return s.app.Communities.Names(ctx, identity)
}

func (s *PlayersScreen) Close() {
	s.Search.Dispose()
}

type CreateCommunityScreen struct {
	Form *form.Controller[community.CreateInput, *community.Community]
}

// CreateCommunityScreen builds the create form. done, when set, runs after
// a successful create with the submit's context, typically going back to a
// refreshed list.
func (a *App) CreateCommunityScreen(done func(context.Context, *community.Community)) *CreateCommunityScreen {
	submit := func(ctx context.Context, input community.CreateInput) (*community.Community, error) {
		identity, err := a.Session.RequireIdentity()
		if err != nil {
			return nil, err
		}
		return a.Communities.Create(ctx, identity, input)
	}

	s := &CreateCommunityScreen{
		Form: form.New(submit, form.Options{
			Name:           "create_community",
			Messages:       map[string]string{"name": community.MsgNameRequired},
			SuccessMessage: community.MsgCreated,
			ErrorMessage:   community.MsgCreateFailed,
			Alerter:        a.opts.Alerter,
		}),
	}
	if done != nil {
		s.Form.OnSuccess(done)
	}
	return s
}
