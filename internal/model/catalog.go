package model

import "time"

// SiteScrapeResult is the self-contained outcome of scraping one site.
type SiteScrapeResult struct {
	SiteID     string      `json:"siteId"`
	Robots     []RawRecord `json:"robots"`
	ScrapedAt  time.Time   `json:"scrapedAt"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Stage      string      `json:"stage,omitempty"`
	DurationMs int64       `json:"durationMs"`
}

// BatchResult aggregates one scrape run over every configured site, in
// registry order.
type BatchResult struct {
	RunID       string             `json:"runId,omitempty"`
	ScrapedAt   time.Time          `json:"scrapedAt"`
	Sites       []SiteScrapeResult `json:"sites"`
	TotalRobots int                `json:"totalRobots"`
}

// Succeeded returns the number of sites scraped successfully.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, s := range b.Sites {
		if s.Success {
			n++
		}
	}
	return n
}

// Baseline is the slower-changing dataset merged under live data. A
// previously merged catalog decodes into a Baseline as well.
type Baseline struct {
	Sites     []Site         `json:"sites"`
	Robots    []DeviceRecord `json:"robots"`
	ScrapedAt *time.Time     `json:"scrapedAt,omitempty"`
}

// Stats counts merged robots by provenance.
type Stats struct {
	Total int `json:"total"`
	Live  int `json:"live"`
	Seed  int `json:"seed"`
}

// MergedCatalog is the artifact handed to the serving layer.
type MergedCatalog struct {
	Sites     []Site         `json:"sites"`
	Robots    []DeviceRecord `json:"robots"`
	ScrapedAt *time.Time     `json:"scrapedAt"`
	MergedAt  time.Time      `json:"mergedAt"`
	Stats     Stats          `json:"stats"`
}
