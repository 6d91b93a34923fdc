package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/guild-roster/internal/config"
	"github.com/Shivanand-hulikatti/guild-roster/internal/database"
	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/printer"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/guild-roster/internal/service"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	rosters   repository.RosterStore
	templates repository.TemplateProvider
	surface   *display.RedisSurface
	svc       *service.RosterService

	pingStore func(ctx context.Context) error
	closers   []func()
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, printer.Error("Invalid configuration", err.Error(),
			fmt.Sprintf("fix %s", configPath),
			"unset the environment variable that overrides it")
	}
	log := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}

// openStore connects the configured roster store. migrate creates the
// schema first; SQLite always does.
func openStore(ctx context.Context, a *app, migrate bool) error {
	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(a.cfg.Store.SQLite.Path)
		if err != nil {
			return printer.Error("Cannot open SQLite database", err.Error())
		}
		a.rosters = sqlite.NewRosterRepo(db)
		a.templates = sqlite.NewTemplateRepo(db)
		a.pingStore = db.PingContext
		a.closers = append(a.closers, func() { _ = db.Close() })

	default:
		pool, err := database.NewPool(ctx, a.cfg.Store.Postgres)
		if err != nil {
			return printer.Error("Cannot connect to PostgreSQL", err.Error(),
				"check store.postgres in the config or the DB_* environment variables")
		}
		a.closers = append(a.closers, pool.Close)
		if migrate {
			if err := database.MigratePostgres(ctx, pool); err != nil {
				return printer.Error("Schema migration failed", err.Error())
			}
		}
		a.rosters = postgres.NewRosterRepository(pool)
		a.templates = postgres.NewTemplateRepository(pool)
		a.pingStore = pool.Ping
	}
	a.log.Info("roster store ready", "driver", a.cfg.Store.Driver)
	return nil
}

func openSurface(ctx context.Context, a *app) error {
	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return printer.Error("Invalid Redis URL", err.Error(), "set redis.url or REDIS_URL")
	}
	rdb := redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	a.surface = display.NewRedisSurface(rdb, a.cfg.Redis.KeyPrefix)
	if err := a.surface.Ping(ctx); err != nil {
		return printer.Error("Cannot connect to Redis", err.Error(), "is redis running at "+opts.Addr+"?")
	}
	a.log.Info("display surface ready", "addr", opts.Addr, "prefix", a.cfg.Redis.KeyPrefix)
	return nil
}

// newApp loads config and connects everything the engine needs. The caller
// must call close.
func newApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	if err := openStore(ctx, a, migrate); err != nil {
		a.close()
		return nil, err
	}
	if err := openSurface(ctx, a); err != nil {
		a.close()
		return nil, err
	}
	a.svc = service.NewRosterService(a.rosters, a.templates, a.surface,
		service.WithClaimBlocking(cfg.Engine.BlockClaimsWhenLocked))
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
