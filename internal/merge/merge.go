// Package merge reconciles a scrape batch with the baseline catalog. Live
// values win for every (site, identity) key the batch covers; baseline
// entries fill in for everything else.
package merge

import (
	"time"

	"robotregistry/internal/identity"
	"robotregistry/internal/model"
)

// Report counts what a merge did, for logging and metrics.
type Report struct {
	Seeded        int // baseline entries keyed
	SeedSkipped   int // baseline entries without a usable identity or site
	SeedRewritten int // baseline identities stored in a non-canonical form
	LiveAdded     int // live keys absent from the baseline
	LiveUpdated   int // live keys overriding a baseline or earlier live entry
	LiveDropped   int // scraped rows with an invalid identity
	SitesMerged   int // successful batch sites
	SitesFellBack int // failed batch sites, served from the baseline
}

// Merger combines a baseline and a batch into a merged catalog.
type Merger struct {
	now func() time.Time
}

// Option customizes a Merger.
type Option func(*Merger)

// WithClock replaces the time source used for mergedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

func New(opts ...Option) *Merger {
	m := &Merger{now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(m)
	}
	return m
}

type key struct {
	siteID string
	mac    string
}

// Merge builds the merged catalog. batch may be nil. Neither input is
// modified. Robot order in the result is unspecified.
//
// Baseline entries are carried as they are except for two fields: source
// becomes seed, and a MAC stored in a non-canonical form is rewritten to
// its canonical form so every keyed record in the output is canonical.
func (m *Merger) Merge(baseline *model.Baseline, batch *model.BatchResult) (*model.MergedCatalog, Report) {
	if baseline == nil {
		baseline = &model.Baseline{}
	}

	var rep Report
	robots := make(map[key]model.DeviceRecord, len(baseline.Robots))

	for _, r := range baseline.Robots {
		res, _ := identity.Apply(r.MAC, identity.Tolerant)
		if res.Canonical == "" || r.SiteID == "" {
			rep.SeedSkipped++
			continue
		}
		if !identity.IsCanonical(r.MAC) {
			rep.SeedRewritten++
		}
		r.MAC = res.Canonical
		r.Source = model.SourceSeed
		robots[key{r.SiteID, res.Canonical}] = r
		rep.Seeded++
	}

	if batch != nil {
		for _, site := range batch.Sites {
			if !site.Success {
				rep.SitesFellBack++
				continue
			}
			rep.SitesMerged++
			for _, raw := range site.Robots {
				rec, ok := liveRecord(site, raw)
				if !ok {
					rep.LiveDropped++
					continue
				}
				k := key{site.SiteID, rec.MAC}
				if _, exists := robots[k]; exists {
					rep.LiveUpdated++
				} else {
					rep.LiveAdded++
				}
				robots[k] = rec
			}
		}
	}

	out := &model.MergedCatalog{
		Sites:    baseline.Sites,
		Robots:   make([]model.DeviceRecord, 0, len(robots)),
		MergedAt: m.now(),
	}
	if out.Sites == nil {
		out.Sites = []model.Site{}
	}
	for _, r := range robots {
		out.Robots = append(out.Robots, r)
		if r.Source == model.SourceLive {
			out.Stats.Live++
		}
	}
	out.Stats.Total = len(out.Robots)
	out.Stats.Seed = out.Stats.Total - out.Stats.Live

	switch {
	case batch != nil && !batch.ScrapedAt.IsZero():
		t := batch.ScrapedAt
		out.ScrapedAt = &t
	case baseline.ScrapedAt != nil:
		t := *baseline.ScrapedAt
		out.ScrapedAt = &t
	}

	return out, rep
}

// liveRecord builds the catalog entry for one scraped row. Rows whose
// identity does not normalize are rejected.
func liveRecord(site model.SiteScrapeResult, raw model.RawRecord) (model.DeviceRecord, bool) {
	res, ok := identity.Apply(raw.MAC, identity.Strict)
	if !ok {
		return model.DeviceRecord{}, false
	}

	scrapedAt := site.ScrapedAt
	return model.DeviceRecord{
		ID:          LiveID(site.SiteID, res.Canonical),
		SiteID:      site.SiteID,
		Type:        raw.Type,
		Name:        raw.Name,
		Description: raw.Description,
		MAC:         res.Canonical,
		RawMAC:      res.Raw,
		Source:      model.SourceLive,
		CreatedAt:   createdAt(raw.RegisteredDate, scrapedAt),
		ScrapedAt:   &scrapedAt,
	}, true
}

// LiveID derives the id of a live record from its key, so re-merging the
// same batch reproduces the same ids.
func LiveID(siteID, canonical string) string {
	return "live-" + siteID + "-" + canonical
}

// createdAt is the console's registration date as displayed, or the scrape
// time when the console shows none.
func createdAt(registered string, scrapedAt time.Time) string {
	if registered == "" {
		return scrapedAt.Format(time.RFC3339)
	}
	return registered
}
