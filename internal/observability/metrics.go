package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"robotregistry/internal/logging"
	"robotregistry/internal/model"
)

var (
	SitesScraped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_sites_scraped_total",
			Help: "Site scrapes by outcome",
		},
		[]string{"site", "outcome"},
	)
	ScrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_site_scrape_duration_seconds",
			Help:    "Duration of one site scrape",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"site"},
	)
	RobotsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_robots_extracted_total",
			Help: "Listing rows extracted from successful scrapes",
		},
		[]string{"site"},
	)
	MergedRobots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registry_merged_robots",
			Help: "Robots in the last merged catalog by source",
		},
		[]string{"source"},
	)
	LiveRowsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_live_rows_dropped_total",
			Help: "Scraped rows dropped for an invalid identity",
		},
	)
	LastMerge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_last_merge_timestamp_seconds",
			Help: "Unix time of the last successful merge",
		},
	)
	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_side_effect_failures_total",
			Help: "Failed catalog mirror or publication writes",
		},
		[]string{"target"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SitesScraped,
			ScrapeDuration,
			RobotsExtracted,
			MergedRobots,
			LiveRowsDropped,
			LastMerge,
			SideEffectFailures,
		)
	})
}

// Start registers the collectors and serves /metrics on port. An empty
// port only registers.
func Start(port string) {
	Register()
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Default().Error().Err(err).Str("port", port).Msg("Metrics server stopped")
		}
	}()
}

// ObserveSite records one site scrape result.
func ObserveSite(res model.SiteScrapeResult) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	SitesScraped.WithLabelValues(res.SiteID, outcome).Inc()
	ScrapeDuration.WithLabelValues(res.SiteID).Observe(float64(res.DurationMs) / 1000)
	if res.Success {
		RobotsExtracted.WithLabelValues(res.SiteID).Add(float64(len(res.Robots)))
	}
}

// ObserveMerge records the provenance counts of a merged catalog.
func ObserveMerge(cat *model.MergedCatalog, dropped int) {
	MergedRobots.WithLabelValues(string(model.SourceLive)).Set(float64(cat.Stats.Live))
	MergedRobots.WithLabelValues(string(model.SourceSeed)).Set(float64(cat.Stats.Seed))
	LiveRowsDropped.Add(float64(dropped))
	LastMerge.Set(float64(cat.MergedAt.Unix()))
}
