package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"robotregistry/internal/model"
)

// DeviceRepository mirrors the merged catalog into Postgres.
type DeviceRepository struct {
	DB *pgxpool.Pool
}

// ReplaceCatalog makes robot_catalog equal to cat in a single transaction.
// Rows absent from cat are removed.
func (r *DeviceRepository) ReplaceCatalog(ctx context.Context, cat *model.MergedCatalog) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM robot_catalog`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	batch := &pgx.Batch{}
	for _, d := range cat.Robots {
		batch.Queue(`
			INSERT INTO robot_catalog
			(site_id, mac, id, type, name, description, raw_mac, source, created_at, scraped_at, merged_at, registered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, deviceArgs(d, cat.MergedAt)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert robots: %w", err)
	}

	return tx.Commit(ctx)
}

// ListBySite returns the mirrored robots of one site.
func (r *DeviceRepository) ListBySite(ctx context.Context, siteID string) ([]model.DeviceRecord, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, site_id, type, name, description, mac, raw_mac, source, created_at, scraped_at
		FROM robot_catalog
		WHERE site_id = $1
		ORDER BY name
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.DeviceRecord
	for rows.Next() {
		var d model.DeviceRecord
		var source string
		if err := rows.Scan(&d.ID, &d.SiteID, &d.Type, &d.Name, &d.Description, &d.MAC, &d.RawMAC, &source, &d.CreatedAt, &d.ScrapedAt); err != nil {
			return nil, err
		}
		d.Source = model.Source(source)
		list = append(list, d)
	}
	return list, rows.Err()
}

func deviceArgs(d model.DeviceRecord, mergedAt time.Time) []any {
	return []any{
		d.SiteID, d.MAC, d.ID, d.Type, d.Name, d.Description,
		d.RawMAC, string(d.Source), d.CreatedAt, d.ScrapedAt, mergedAt,
		registeredAt(d.CreatedAt),
	}
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// registeredAt types createdAt for the registered_at column. Only values
// starting with an ISO date are parsed; anything else is NULL.
func registeredAt(createdAt string) *time.Time {
	if !isoDate.MatchString(createdAt) {
		return nil
	}
	t, err := dateparse.ParseIn(createdAt, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
