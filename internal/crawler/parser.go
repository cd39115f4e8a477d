package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"robotregistry/internal/model"
	"robotregistry/internal/sites"
)

// ParseListing extracts robot rows from a listing page using the site's row
// selector and column mapping. Rows with fewer cells than the site minimum
// and rows without a name are not data and are skipped.
func ParseListing(html string, site sites.SiteConfig) ([]model.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	records := []model.RawRecord{}
	minCells := site.MinimumCells()
	doc.Find(site.Rows()).Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < minCells {
			return
		}

		cell := func(f sites.Field) string {
			i, ok := site.ColumnMapping.Index(f)
			if !ok || i >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(i).Text())
		}

		rec := model.RawRecord{
			Type:           cell(sites.FieldType),
			Name:           cell(sites.FieldName),
			MAC:            cell(sites.FieldMAC),
			Description:    cell(sites.FieldDescription),
			RegisteredDate: cell(sites.FieldRegisteredDate),
		}
		if rec.Name == "" {
			return
		}
		records = append(records, rec)
	})

	return records, nil
}
