package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"domino-community/internal/app"
	"domino-community/internal/community"
	"domino-community/internal/gateway"
	"domino-community/internal/gateway/pgstore"
	"domino-community/internal/gateway/rest"
	"domino-community/internal/shared/alert"
	"domino-community/internal/shared/config"
	"domino-community/internal/shared/database"
	"domino-community/internal/shared/redis"
	"domino-community/internal/tokenstore"

	"golang.org/x/time/rate"
)

// environment is everything a command needs, plus what must be closed.
type environment struct {
	app *app.App

	db    *database.DB
	redis *redis.Client
}

func connect(ctx context.Context, cfg *config.Config) (*environment, error) {
	logger := slog.With("component", "dominoctl", "operation", "connect", "backend", cfg.Backend.Mode)

	env := &environment{}

	store, err := env.tokenStore(ctx, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	var gw gateway.Gateway
	switch cfg.Backend.Mode {
	case config.BackendModePostgres:
		env.db, err = database.Connect(ctx, cfg)
		if err != nil {
			env.Close()
			return nil, err
		}
		gw, err = pgstore.New(env.db, pgstore.Options{
			Secret:   []byte(cfg.Auth.JWTSecret),
			TokenTTL: cfg.Auth.TokenExpiration,
			Store:    store,
		})
	default:
		var limiter *rate.Limiter
		if cfg.RateLimit.Enabled {
			limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize)
		}
		gw, err = rest.New(rest.Options{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
			Timeout: cfg.Backend.RequestTimeout,
			Limiter: limiter,
			Store:   store,
		})
	}
	if err != nil {
		env.Close()
		return nil, err
	}

	env.app = app.New(gw, app.Options{
		Alerter:        alert.NewWriter(os.Stderr),
		DebounceWindow: cfg.UI.DebounceWindow,
		Origin:         community.Point{Latitude: cfg.UI.OriginLatitude, Longitude: cfg.UI.OriginLongitude},
		MaxDistanceKm:  cfg.UI.MaxDistanceKm,
	})
	env.app.Start(ctx)

	logger.Debug("Session resolved", "route", env.app.Route())
	return env, nil
}

func (env *environment) tokenStore(ctx context.Context, cfg *config.Config) (tokenstore.Store, error) {
	if cfg.Session.Store != config.TokenStoreRedis {
		return tokenstore.NewFileStore(cfg.Session.FilePath), nil
	}

	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("redis session store requires REDIS_ENABLED=true")
	}
	env.redis = client
	return tokenstore.NewRedisStore(client, cfg.Session.KeyPrefix, cfg.Session.Key, cfg.Session.TTL), nil
}

func (env *environment) Close() {
	if env.app != nil {
		env.app.Close()
		env.app = nil
	}
	if env.db != nil {
		_ = env.db.Close()
		env.db = nil
	}
	if env.redis != nil {
		_ = env.redis.Close()
		env.redis = nil
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Backend.Mode != config.BackendModePostgres {
		return fmt.Errorf("migrate needs BACKEND_MODE=postgres")
	}

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	source, err := database.MigrationSource(cfg.Database.MigrationsPath)
	if err != nil {
		return err
	}
	if err := db.RunMigrations(ctx, source); err != nil {
		return err
	}
	Out.Printf("Migrations applied")
	return nil
}
