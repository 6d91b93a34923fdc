// Package database provides connection management for the PostgreSQL (pgx)
// and SQLite backends, plus their schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/Shivanand-hulikatti/guild-roster/internal/config"
)

// NewPool creates and validates a pgxpool connection pool.
// It retries up to 5 times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		slog.Warn("db connect attempt failed, retrying in 2s", "attempt", attempt, "max", 5, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return pool, nil
}

// MigratePostgres creates the roster and composition tables if missing.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
//
// The pool is limited to one connection: SQLite allows a single writer, and
// funnelling every transaction through one connection makes each roster
// update run start-to-finish without interleaving.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS compositions (
	guild_id   TEXT NOT NULL,
	comp_name  TEXT NOT NULL,
	owner      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (guild_id, comp_name)
);

CREATE TABLE IF NOT EXISTS composition_roles (
	guild_id  TEXT NOT NULL,
	comp_name TEXT NOT NULL,
	role_id   INTEGER NOT NULL,
	role_name TEXT NOT NULL,
	party     TEXT NOT NULL,
	PRIMARY KEY (guild_id, comp_name, role_id),
	FOREIGN KEY (guild_id, comp_name) REFERENCES compositions (guild_id, comp_name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rosters (
	event_id            TEXT PRIMARY KEY,
	guild_id            TEXT NOT NULL,
	organizer           TEXT NOT NULL,
	title               TEXT NOT NULL,
	event_date          TEXT NOT NULL,
	event_time          TEXT NOT NULL,
	comp_name           TEXT NOT NULL,
	lock_offset_minutes INTEGER,
	starts_at           TIMESTAMPTZ NOT NULL,
	slots               JSONB NOT NULL,
	version             BIGINT NOT NULL DEFAULT 1,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS rosters_guild_idx ON rosters (guild_id);
CREATE INDEX IF NOT EXISTS rosters_starts_at_idx ON rosters (starts_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS compositions (
	guild_id   TEXT NOT NULL,
	comp_name  TEXT NOT NULL,
	owner      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (guild_id, comp_name)
);

CREATE TABLE IF NOT EXISTS composition_roles (
	guild_id  TEXT NOT NULL,
	comp_name TEXT NOT NULL,
	role_id   INTEGER NOT NULL,
	role_name TEXT NOT NULL,
	party     TEXT NOT NULL,
	PRIMARY KEY (guild_id, comp_name, role_id),
	FOREIGN KEY (guild_id, comp_name) REFERENCES compositions (guild_id, comp_name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rosters (
	event_id            TEXT PRIMARY KEY,
	guild_id            TEXT NOT NULL,
	organizer           TEXT NOT NULL,
	title               TEXT NOT NULL,
	event_date          TEXT NOT NULL,
	event_time          TEXT NOT NULL,
	comp_name           TEXT NOT NULL,
	lock_offset_minutes INTEGER,
	starts_at           INTEGER NOT NULL,
	slots               TEXT NOT NULL,
	version             INTEGER NOT NULL DEFAULT 1,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS rosters_guild_idx ON rosters (guild_id);
CREATE INDEX IF NOT EXISTS rosters_starts_at_idx ON rosters (starts_at);
`
