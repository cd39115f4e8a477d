package store

import (
	"io"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"robotregistry/internal/model"
)

type csvRow struct {
	SiteID      string `csv:"site_id"`
	MAC         string `csv:"mac"`
	Name        string `csv:"name"`
	Type        string `csv:"type"`
	Description string `csv:"description"`
	Source      string `csv:"source"`
	CreatedAt   string `csv:"created_at"`
	ScrapedAt   string `csv:"scraped_at"`
}

// ExportCSV writes the catalog's robots as CSV sorted by site then MAC,
// for spreadsheet users.
func ExportCSV(w io.Writer, cat *model.MergedCatalog) error {
	rows := make([]*csvRow, 0, len(cat.Robots))
	for _, r := range cat.Robots {
		row := &csvRow{
			SiteID:      r.SiteID,
			MAC:         r.MAC,
			Name:        r.Name,
			Type:        r.Type,
			Description: r.Description,
			Source:      string(r.Source),
			CreatedAt:   r.CreatedAt,
		}
		if r.ScrapedAt != nil {
			row.ScrapedAt = r.ScrapedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SiteID != rows[j].SiteID {
			return rows[i].SiteID < rows[j].SiteID
		}
		return rows[i].MAC < rows[j].MAC
	})
	return gocsv.Marshal(rows, w)
}
