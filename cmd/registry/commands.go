package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"robotregistry/internal/config"
	"robotregistry/internal/logging"
	"robotregistry/internal/model"
	"robotregistry/internal/pipeline"
	"robotregistry/internal/scheduler"
	"robotregistry/internal/sites"
	"robotregistry/internal/store"
)

type scrapeFlags struct {
	sites   []string
	visible bool
}

func (f *scrapeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.sites, "site", nil, "scrape only this site id (repeatable)")
	cmd.Flags().BoolVar(&f.visible, "visible", false, "show the browser window")
}

func newScrapeCmd(root *rootOptions) *cobra.Command {
	flags := &scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the configured sites and write the batch file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg, appOptions{scrape: true, visible: flags.visible})
			if err != nil {
				return err
			}
			defer a.Close()

			batch, err := a.pipeline.Scrape(ctx, flags.sites...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d sites scraped, %d robots -> %s\n",
				batch.Succeeded(), len(batch.Sites), batch.TotalRobots, root.cfg.BatchFile)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newMergeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge the baseline and the last batch into the merged catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			cat, _, err := a.pipeline.Merge(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d robots (%d live, %d seed) -> %s\n",
				cat.Stats.Total, cat.Stats.Live, cat.Stats.Seed, root.cfg.MergedFile)
			return nil
		},
	}
}

func newRunCmd(root *rootOptions) *cobra.Command {
	flags := &scrapeFlags{}
	var schedule string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape then merge, once or on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg, appOptions{scrape: true, visible: flags.visible})
			if err != nil {
				return err
			}
			defer a.Close()

			if schedule != "" {
				s, err := scheduler.New(schedule, func(ctx context.Context) error {
					_, err := a.pipeline.Run(ctx, flags.sites...)
					return err
				}, time.Local)
				if err != nil {
					return err
				}
				return s.Run(ctx)
			}

			cat, err := a.pipeline.Trigger(ctx, flags.sites...)
			var cooldown *pipeline.CooldownError
			if errors.As(err, &cooldown) {
				logging.FromContext(ctx).Warn().Dur("retry_in", cooldown.Wait).Msg("Refresh skipped")
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d robots (%d live, %d seed) -> %s\n",
				cat.Stats.Total, cat.Stats.Live, cat.Stats.Seed, root.cfg.MergedFile)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron spec to keep running, e.g. "0 */6 * * *" or "@every 6h"`)
	return cmd
}

func newSitesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sites [site-id]",
		Short: "Validate and list the configured sites, or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := sites.Load(root.cfg.SitesFile)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				s, ok := reg.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown site %q", args[0])
				}
				return showSite(cmd, s)
			}

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header("ID", "Login URL", "Listing URL", "Rows")
			for _, s := range reg.Sites() {
				if err := table.Append(s.ID, s.LoginURL, s.ListingURL, s.Rows()); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func showSite(cmd *cobra.Command, s sites.SiteConfig) error {
	table := tablewriter.NewTable(cmd.OutOrStdout())
	table.Header("Setting", "Value")
	rows := [][]string{
		{"id", s.ID},
		{"login url", s.LoginURL},
		{"listing url", s.ListingURL},
		{"username input", s.Locators.UsernameInput},
		{"password input", s.Locators.PasswordInput},
		{"login button", s.Locators.LoginButton},
		{"wait for", s.Locators.WaitForElement},
		{"rows", s.Rows()},
	}
	fields := make([]string, 0, len(s.ColumnMapping))
	for f := range s.ColumnMapping {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		rows = append(rows, []string{"column " + f, strconv.Itoa(s.ColumnMapping[sites.Field(f)])})
	}
	for _, r := range rows {
		if err := table.Append(r[0], r[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

func newDevicesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices <site-id>",
		Short: "List the mirrored robots of a site (needs DATABASE_URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.devices == nil {
				return errors.New("DATABASE_URL is not configured")
			}
			robots, err := a.devices.ListBySite(ctx, args[0])
			if err != nil {
				return err
			}

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header("MAC", "Name", "Type", "Source", "Created")
			for _, r := range robots {
				if err := table.Append(r.MAC, r.Name, r.Type, string(r.Source), r.CreatedAt); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <site-id>",
		Short: "Show the recent scrape outcomes of a site (needs DATABASE_URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.runs == nil {
				return errors.New("DATABASE_URL is not configured")
			}
			runs, err := a.runs.SiteHistory(ctx, args[0], limit)
			if err != nil {
				return err
			}

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header("Run", "Success", "Robots", "Stage", "Error", "Duration")
			for _, r := range runs {
				dur := (time.Duration(r.DurationMs) * time.Millisecond).String()
				if err := table.Append(r.RunID, strconv.FormatBool(r.Success), strconv.Itoa(r.Robots), r.Stage, r.Error, dur); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		out       string
		fromCache bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the merged catalog as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadForExport(cmd.Context(), root.cfg, fromCache)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return store.ExportCSV(cmd.OutOrStdout(), cat)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := store.ExportCSV(f, cat); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&fromCache, "from-cache", false, "read the catalog last published to Redis instead of the merged file")
	return cmd
}

func loadForExport(ctx context.Context, cfg *config.Config, fromCache bool) (*model.MergedCatalog, error) {
	if !fromCache {
		return store.LoadMerged(cfg.MergedFile)
	}

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if a.published == nil {
		return nil, errors.New("REDIS_URL is not configured")
	}
	cat, err := a.published.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, errors.New("no catalog has been published yet")
	}
	return cat, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
