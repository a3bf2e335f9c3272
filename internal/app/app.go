// Package app assembles the session store, the domain services and the
// per-screen controllers on top of one gateway.
package app

import (
	"context"
	"log/slog"
	"time"

	"domino-community/internal/auth"
	"domino-community/internal/community"
	"domino-community/internal/competition"
	"domino-community/internal/debounce"
	"domino-community/internal/gateway"
	"domino-community/internal/player"
	"domino-community/internal/profile"
	"domino-community/internal/shared/alert"
)

type Route string

const (
	RouteLoading Route = "loading"
	RouteLogin   Route = "login"
	RouteHome    Route = "home"
)

type Options struct {
	Alerter        alert.Alerter
	Clock          debounce.Clock
	DebounceWindow time.Duration
	// Origin is where discover distances are measured from.
	Origin        community.Point
	MaxDistanceKm float64
}

type App struct {
	Gateway      gateway.Gateway
	Session      *auth.Store
	Communities  *community.Service
	Players      *player.Service
	Competitions *competition.Repository

	opts   Options
	logger *slog.Logger
}

func New(gw gateway.Gateway, opts Options) *App {
	logger := slog.With("component", "app")
	logger.Debug("Initializing app", "debounce_window", opts.DebounceWindow, "max_distance_km", opts.MaxDistanceKm)

	if opts.Alerter == nil {
		opts.Alerter = alert.Func(func(string, string) {})
	}
	if opts.Clock == nil {
		opts.Clock = debounce.RealClock
	}

	competitions := competition.NewRepository(gw)
	return &App{
		Gateway:      gw,
		Session:      auth.NewStore(gw, profile.NewRepository(gw), opts.Alerter),
		Communities:  community.NewService(community.NewRepository(gw), competitions, logger),
		Players:      player.NewService(player.NewRepository(gw), logger),
		Competitions: competitions,
		opts:         opts,
		logger:       logger,
	}
}

// Start resolves the stored session. Route reports loading until it is done.
func (a *App) Start(ctx context.Context) {
	a.Session.Start(ctx)
}

func (a *App) Close() {
	a.Session.Close()
}

// Route picks the navigation stack for the current session state.
func (a *App) Route() Route {
	switch a.Session.Snapshot().State {
	case auth.StateAuthenticated:
		return RouteHome
	case auth.StateAnonymous:
		return RouteLogin
	}
	return RouteLoading
}
