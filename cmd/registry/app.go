package main

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"robotregistry/internal/cache"
	"robotregistry/internal/config"
	"robotregistry/internal/crawler"
	"robotregistry/internal/db"
	"robotregistry/internal/logging"
	"robotregistry/internal/merge"
	"robotregistry/internal/pipeline"
	"robotregistry/internal/repository"
	"robotregistry/internal/sites"
)

type appOptions struct {
	scrape  bool
	visible bool
}

// app holds the pipeline and the connections it was built with.
type app struct {
	pipeline  *pipeline.Pipeline
	runs      *repository.RunRepository
	devices   *repository.DeviceRepository
	published *cache.Publisher

	pool  *pgxpool.Pool
	sqlDB *sql.DB
	redis *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	log := logging.FromContext(ctx)

	a := &app{pipeline: &pipeline.Pipeline{
		Merger: merge.New(),
		Paths: pipeline.Paths{
			Baseline: cfg.BaselineFile,
			Batch:    cfg.BatchFile,
			Merged:   cfg.MergedFile,
		},
	}}

	if opts.scrape {
		if err := cfg.RequireCredentials(); err != nil {
			return nil, err
		}
		reg, err := sites.Load(cfg.SitesFile)
		if err != nil {
			return nil, err
		}
		log.Info().Int("sites", reg.Len()).Str("path", cfg.SitesFile).Msg("Site configuration loaded")

		browser := crawler.NewChrome(crawler.ChromeOptions{
			ExecPath: cfg.ChromePath,
			Headless: cfg.Headless && !opts.visible,
		})
		scrapeOpts := crawler.DefaultOptions()
		scrapeOpts.PageTimeout = cfg.PageTimeout
		scrapeOpts.ContentTimeout = cfg.ContentTimeout
		scraper := crawler.NewScraper(browser, crawler.Credentials{Username: cfg.Username, Password: cfg.Password}, scrapeOpts)

		a.pipeline.Registry = reg
		a.pipeline.Batch = crawler.NewOrchestrator(scraper, crawler.FixedDelay(cfg.SiteDelay))
	}

	// Postgres and Redis are optional; when unreachable the artifacts are
	// still produced.
	if cfg.DatabaseURL != "" {
		a.connectPostgres(ctx, cfg.DatabaseURL)
	}
	if cfg.RedisURL != "" {
		a.connectRedis(ctx, cfg)
	}
	return a, nil
}

func (a *app) connectPostgres(ctx context.Context, url string) {
	log := logging.FromContext(ctx)

	pool, err := db.NewPool(ctx, url)
	if err != nil {
		log.Warn().Err(err).Msg("Postgres unavailable, catalog mirror disabled")
		return
	}
	if err := db.Migrate(ctx, pool); err != nil {
		log.Warn().Err(err).Msg("Postgres migration failed, catalog mirror disabled")
		pool.Close()
		return
	}
	a.pool = pool
	a.devices = &repository.DeviceRepository{DB: pool}
	a.pipeline.Sinks = append(a.pipeline.Sinks, pipeline.MirrorTo(a.devices))

	sqlDB, err := db.New(url)
	if err != nil {
		log.Warn().Err(err).Msg("Run history disabled")
		return
	}
	a.sqlDB = sqlDB
	a.runs = &repository.RunRepository{DB: sqlDB}
	a.pipeline.Runs = a.runs
}

func (a *app) connectRedis(ctx context.Context, cfg *config.Config) {
	client, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Redis unavailable, publication and merge lock disabled")
		return
	}
	a.redis = client
	a.published = &cache.Publisher{Client: client}
	a.pipeline.Sinks = append(a.pipeline.Sinks, pipeline.PublishTo(a.published))
	a.pipeline.Locker = &cache.Locker{Client: client, TTL: cfg.MergeLockTTL}
	a.pipeline.Gate = &cache.Cooldown{Client: client, Period: cfg.TriggerCooldown}
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.sqlDB != nil {
		a.sqlDB.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
