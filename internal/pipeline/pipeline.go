// Package pipeline composes the scrape, merge and publication steps into
// the operations exposed by the command line.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"robotregistry/internal/logging"
	"robotregistry/internal/merge"
	"robotregistry/internal/model"
	"robotregistry/internal/observability"
	"robotregistry/internal/sites"
	"robotregistry/internal/store"
)

// BatchRunner scrapes a list of sites into a batch.
type BatchRunner interface {
	Run(ctx context.Context, configs []sites.SiteConfig) (*model.BatchResult, error)
}

// CatalogSink receives every merged catalog after it has been written.
// Postgres mirroring and Redis publication are sinks.
type CatalogSink interface {
	Name() string
	Accept(ctx context.Context, cat *model.MergedCatalog) error
}

// RunRecorder stores the outcome of a scrape run.
type RunRecorder interface {
	Record(ctx context.Context, b *model.BatchResult) error
}

// Locker serializes writers of the merged artifact.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Gate rate-limits manually triggered runs.
type Gate interface {
	Allow(ctx context.Context) (ok bool, wait time.Duration, err error)
}

// CooldownError is returned by Trigger when the previous trigger is too
// recent.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("refresh triggered too recently, retry in %s", e.Wait.Round(time.Second))
}

// Paths names the artifact files.
type Paths struct {
	Baseline string
	Batch    string
	Merged   string
}

type Pipeline struct {
	Registry *sites.Registry
	Batch    BatchRunner
	Merger   *merge.Merger
	Paths    Paths

	// Optional.
	Sinks  []CatalogSink
	Runs   RunRecorder
	Locker Locker
	Gate   Gate
}

// Scrape runs the scraper over the selected sites (all when ids is empty)
// and writes the batch artifact. A cancelled run is returned but not
// written.
func (p *Pipeline) Scrape(ctx context.Context, ids ...string) (*model.BatchResult, error) {
	configs, err := p.Registry.Select(ids...)
	if err != nil {
		return nil, err
	}

	batch, err := p.Batch.Run(ctx, configs)
	if err != nil {
		return batch, err
	}

	if err := store.SaveBatch(p.Paths.Batch, batch); err != nil {
		return batch, err
	}
	logging.FromContext(ctx).Info().
		Str("run_id", batch.RunID).
		Str("path", p.Paths.Batch).
		Int("succeeded", batch.Succeeded()).
		Int("failed", len(batch.Sites)-batch.Succeeded()).
		Int("robots", batch.TotalRobots).
		Msg("Batch written")

	if p.Runs != nil {
		if err := p.Runs.Record(ctx, batch); err != nil {
			sideEffectFailed(ctx, "run_history", err)
		}
	}
	return batch, nil
}

// Merge reconciles the baseline with the batch artifact, if any, and writes
// the merged catalog.
func (p *Pipeline) Merge(ctx context.Context) (*model.MergedCatalog, merge.Report, error) {
	batch, err := store.LoadBatch(p.Paths.Batch)
	if err != nil {
		return nil, merge.Report{}, err
	}
	if batch == nil {
		logging.FromContext(ctx).Warn().Str("path", p.Paths.Batch).Msg("No batch file, merging baseline only")
	}
	return p.MergeBatch(ctx, batch)
}

// MergeBatch reconciles the baseline with batch, which may be nil.
func (p *Pipeline) MergeBatch(ctx context.Context, batch *model.BatchResult) (*model.MergedCatalog, merge.Report, error) {
	log := logging.FromContext(ctx)

	if p.Locker != nil {
		release, err := p.Locker.Acquire(ctx)
		if err != nil {
			return nil, merge.Report{}, fmt.Errorf("acquire merge lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("Failed to release merge lock")
			}
		}()
	}

	baseline, err := store.LoadBaseline(p.Paths.Baseline)
	if err != nil {
		return nil, merge.Report{}, err
	}

	cat, rep := p.Merger.Merge(baseline, batch)
	if err := store.SaveMerged(p.Paths.Merged, cat); err != nil {
		return nil, rep, err
	}
	observability.ObserveMerge(cat, rep.LiveDropped)

	log.Info().
		Str("path", p.Paths.Merged).
		Int("total", cat.Stats.Total).
		Int("live", cat.Stats.Live).
		Int("seed", cat.Stats.Seed).
		Int("live_added", rep.LiveAdded).
		Int("live_updated", rep.LiveUpdated).
		Int("live_dropped", rep.LiveDropped).
		Int("seed_skipped", rep.SeedSkipped).
		Int("seed_rewritten", rep.SeedRewritten).
		Int("sites_fell_back", rep.SitesFellBack).
		Msg("Merged catalog written")

	for _, s := range p.Sinks {
		if err := s.Accept(ctx, cat); err != nil {
			sideEffectFailed(ctx, s.Name(), err)
		}
	}
	return cat, rep, nil
}

// Run scrapes then merges the fresh batch. If the scrape was cancelled
// nothing is merged.
func (p *Pipeline) Run(ctx context.Context, ids ...string) (*model.MergedCatalog, error) {
	batch, err := p.Scrape(ctx, ids...)
	if err != nil {
		return nil, err
	}
	cat, _, err := p.MergeBatch(ctx, batch)
	return cat, err
}

// Trigger is Run behind the Gate, for on-demand refreshes.
func (p *Pipeline) Trigger(ctx context.Context, ids ...string) (*model.MergedCatalog, error) {
	if p.Gate != nil {
		ok, wait, err := p.Gate.Allow(ctx)
		if err != nil {
			return nil, fmt.Errorf("check trigger cooldown: %w", err)
		}
		if !ok {
			return nil, &CooldownError{Wait: wait}
		}
	}
	return p.Run(ctx, ids...)
}

func sideEffectFailed(ctx context.Context, target string, err error) {
	observability.SideEffectFailures.WithLabelValues(target).Inc()
	logging.FromContext(ctx).Error().Err(err).Str("target", target).Msg("Side effect failed, artifact kept")
}
