package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"robotregistry/internal/model"
)

func TestObserveSite(t *testing.T) {
	ObserveSite(model.SiteScrapeResult{
		SiteID:     "metrics-a.example",
		Robots:     []model.RawRecord{{}, {}, {}},
		Success:    true,
		DurationMs: 1500,
	})
	ObserveSite(model.SiteScrapeResult{SiteID: "metrics-a.example", Robots: []model.RawRecord{}, Error: "timeout"})

	assert.Equal(t, 1.0, testutil.ToFloat64(SitesScraped.WithLabelValues("metrics-a.example", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SitesScraped.WithLabelValues("metrics-a.example", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(RobotsExtracted.WithLabelValues("metrics-a.example")))
}

func TestObserveMerge(t *testing.T) {
	before := testutil.ToFloat64(LiveRowsDropped)
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	ObserveMerge(&model.MergedCatalog{MergedAt: at, Stats: model.Stats{Total: 5, Live: 3, Seed: 2}}, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(MergedRobots.WithLabelValues("live")))
	assert.Equal(t, 2.0, testutil.ToFloat64(MergedRobots.WithLabelValues("seed")))
	assert.Equal(t, before+2, testutil.ToFloat64(LiveRowsDropped))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(LastMerge))
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
		Start("")
	})
}
