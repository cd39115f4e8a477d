package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"robotregistry/internal/logging"
	"robotregistry/internal/model"
	"robotregistry/internal/observability"
	"robotregistry/internal/sites"
)

// SiteScraper scrapes one site.
type SiteScraper interface {
	Scrape(ctx context.Context, site sites.SiteConfig) model.SiteScrapeResult
}

// Orchestrator scrapes sites one after another and collects every result,
// successful or not, into one batch.
type Orchestrator struct {
	scraper SiteScraper
	pacer   Pacer
	now     func() time.Time
	runID   func() string
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithBatchClock replaces the time source.
func WithBatchClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID replaces the run id generator.
func WithRunID(gen func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.runID = gen }
}

func NewOrchestrator(scraper SiteScraper, pacer Pacer, options ...OrchestratorOption) *Orchestrator {
	if pacer == nil {
		pacer = NoDelay{}
	}
	o := &Orchestrator{
		scraper: scraper,
		pacer:   pacer,
		now:     func() time.Time { return time.Now().UTC() },
		runID:   func() string { return uuid.New().String() },
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run scrapes configs in order. A failing site never stops the batch; only
// cancellation of ctx does, in which case the partial batch is returned
// together with the context error.
func (o *Orchestrator) Run(ctx context.Context, configs []sites.SiteConfig) (*model.BatchResult, error) {
	batch := &model.BatchResult{
		RunID:     o.runID(),
		ScrapedAt: o.now(),
		Sites:     make([]model.SiteScrapeResult, 0, len(configs)),
	}
	ctx = logging.WithField(ctx, "run_id", batch.RunID)
	log := logging.FromContext(ctx)
	log.Info().Int("sites", len(configs)).Msg("Starting scrape run")

	for i, site := range configs {
		if err := ctx.Err(); err != nil {
			return batch, fmt.Errorf("scrape run cancelled before %s: %w", site.ID, err)
		}

		res := o.scrapeSafe(ctx, site)
		batch.Sites = append(batch.Sites, res)
		if res.Success {
			batch.TotalRobots += len(res.Robots)
		}
		observability.ObserveSite(res)

		if i < len(configs)-1 {
			if err := o.pacer.Wait(ctx); err != nil {
				return batch, fmt.Errorf("scrape run cancelled after %s: %w", site.ID, err)
			}
		}
	}

	log.Info().
		Int("succeeded", batch.Succeeded()).
		Int("sites", len(batch.Sites)).
		Int("robots", batch.TotalRobots).
		Msg("Scrape run complete")
	return batch, nil
}

// scrapeSafe converts a scraper panic into a failed result.
func (o *Orchestrator) scrapeSafe(ctx context.Context, site sites.SiteConfig) (res model.SiteScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error().Str("site_id", site.ID).Interface("panic", r).Msg("Fatal error scraping site")
			res = model.SiteScrapeResult{
				SiteID:    site.ID,
				Robots:    []model.RawRecord{},
				ScrapedAt: o.now(),
				Success:   false,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	res = o.scraper.Scrape(ctx, site)
	if res.Robots == nil || !res.Success {
		res.Robots = []model.RawRecord{}
	}
	return res
}
