package model

import "time"

// Source records which dataset a catalog entry's values came from.
type Source string

const (
	SourceSeed Source = "seed"
	SourceLive Source = "live"
)

// DeviceRecord is one robot in the catalog. MAC is the canonical identity
// ("AA:BB:CC:DD:EE:FF") and may be empty only for seed records carrying a
// malformed legacy identifier in RawMAC.
type DeviceRecord struct {
	ID          string     `json:"id"`
	SiteID      string     `json:"siteId"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	MAC         string     `json:"mac"`
	RawMAC      string     `json:"rawMac"`
	Source      Source     `json:"source"`
	CreatedAt   string     `json:"createdAt,omitempty"`
	ScrapedAt   *time.Time `json:"scrapedAt,omitempty"`
}

// RawRecord is one listing row as extracted from a site, before identity
// normalization.
type RawRecord struct {
	Type           string `json:"type"`
	Name           string `json:"name"`
	MAC            string `json:"mac"`
	Description    string `json:"description"`
	RegisteredDate string `json:"registeredDate"`
}

// Site is a console entry of the baseline export.
type Site struct {
	ID      string `json:"id"`
	BaseURL string `json:"baseUrl"`
	Status  string `json:"status"`
}
