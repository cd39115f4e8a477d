package repository

import (
	"context"
	"database/sql"

	"robotregistry/internal/model"
)

// RunRepository keeps the history of scrape runs and their per-site
// outcomes.
type RunRepository struct {
	DB *sql.DB
}

// SiteRun is one row of scrape_site_results.
type SiteRun struct {
	RunID      string
	SiteID     string
	Success    bool
	Robots     int
	Stage      string
	Error      string
	DurationMs int64
}

// Record stores b. Recording the same run twice replaces its site rows.
func (r *RunRepository) Record(ctx context.Context, b *model.BatchResult) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scrape_runs (run_id, scraped_at, sites, succeeded, total_robots)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE
		SET scraped_at = $2, sites = $3, succeeded = $4, total_robots = $5
	`, b.RunID, b.ScrapedAt, len(b.Sites), b.Succeeded(), b.TotalRobots)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM scrape_site_results WHERE run_id = $1`, b.RunID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scrape_site_results
		(run_id, site_id, success, robots, stage, error, duration_ms, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range b.Sites {
		if _, err := stmt.ExecContext(ctx, b.RunID, s.SiteID, s.Success, len(s.Robots), s.Stage, s.Error, s.DurationMs, s.ScrapedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SiteHistory returns the latest outcomes of one site, newest first.
func (r *RunRepository) SiteHistory(ctx context.Context, siteID string, limit int) ([]SiteRun, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT run_id, site_id, success, robots, stage, error, duration_ms
		FROM scrape_site_results
		WHERE site_id = $1
		ORDER BY scraped_at DESC
		LIMIT $2
	`, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []SiteRun
	for rows.Next() {
		var s SiteRun
		if err := rows.Scan(&s.RunID, &s.SiteID, &s.Success, &s.Robots, &s.Stage, &s.Error, &s.DurationMs); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
