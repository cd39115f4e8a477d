package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// New opens the database/sql handle used for scrape run history.
func New(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewPool opens the pgx pool used for the device catalog mirror.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS robot_catalog (
	site_id      TEXT NOT NULL,
	mac          TEXT NOT NULL,
	id           TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	raw_mac      TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL,
	created_at   TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMPTZ,
	scraped_at   TIMESTAMPTZ,
	merged_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (site_id, mac)
);

ALTER TABLE robot_catalog ADD COLUMN IF NOT EXISTS registered_at TIMESTAMPTZ;

CREATE TABLE IF NOT EXISTS scrape_runs (
	run_id        TEXT PRIMARY KEY,
	scraped_at    TIMESTAMPTZ NOT NULL,
	sites         INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	total_robots  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_site_results (
	run_id       TEXT NOT NULL REFERENCES scrape_runs(run_id) ON DELETE CASCADE,
	site_id      TEXT NOT NULL,
	success      BOOLEAN NOT NULL,
	robots       INTEGER NOT NULL,
	stage        TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL,
	scraped_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, site_id)
);
`

// Migrate creates the catalog and run history tables when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
