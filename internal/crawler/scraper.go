package crawler

import (
	"context"
	"fmt"
	"time"

	"robotregistry/internal/logging"
	"robotregistry/internal/model"
	"robotregistry/internal/sites"
)

// State is a step of a single site scrape.
type State string

const (
	StateInit                State = "init"
	StateLoggingIn           State = "logging_in"
	StateNavigatingToListing State = "navigating_to_listing"
	StateWaitingForContent   State = "waiting_for_content"
	StateExtracting          State = "extracting"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Options bounds the waits of a scrape.
type Options struct {
	PageTimeout    time.Duration // navigation, typing, post-login navigation wait
	ContentTimeout time.Duration // required wait for the content-ready locator
	LoginPause     time.Duration // pause after submitting the login form
	SettleDelay    time.Duration // pause after content appears, for late rows
}

// DefaultOptions returns the timings used in production.
func DefaultOptions() Options {
	return Options{
		PageTimeout:    30 * time.Second,
		ContentTimeout: 10 * time.Second,
		LoginPause:     time.Second,
		SettleDelay:    2 * time.Second,
	}
}

// Scraper drives one authenticated browser session through a site's login
// and listing pages. Scrape never returns an error: every failure becomes a
// failed SiteScrapeResult.
type Scraper struct {
	browser Browser
	creds   Credentials
	opts    Options

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// ScraperOption customizes a Scraper.
type ScraperOption func(*Scraper)

// WithClock replaces the time source.
func WithClock(now func() time.Time) ScraperOption {
	return func(s *Scraper) { s.now = now }
}

// WithSleep replaces the pause implementation.
func WithSleep(sleep func(context.Context, time.Duration) error) ScraperOption {
	return func(s *Scraper) { s.sleep = sleep }
}

func NewScraper(browser Browser, creds Credentials, opts Options, options ...ScraperOption) *Scraper {
	s := &Scraper{
		browser: browser,
		creds:   creds,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   sleepContext,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Scrape runs the login → listing → extraction flow for site. Exactly one
// session is opened and it is closed before Scrape returns.
func (s *Scraper) Scrape(ctx context.Context, site sites.SiteConfig) (res model.SiteScrapeResult) {
	start := s.now()
	log := logging.FromContext(ctx).With().Str("site_id", site.ID).Logger()
	state := StateInit

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", string(state)).Msg("Scraper panicked")
			res = s.failed(site.ID, start, &StepError{SiteID: site.ID, State: state, Kind: ErrExtraction, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	fail := func(kind, err error) model.SiteScrapeResult {
		stepErr := &StepError{SiteID: site.ID, State: state, Kind: kind, Err: err}
		log.Warn().Err(stepErr).Str("stage", string(state)).Msg("Site scrape failed")
		return s.failed(site.ID, start, stepErr)
	}

	sess, err := s.browser.Open(ctx)
	if err != nil {
		return fail(classify(err, ErrBrowser, ErrBrowser), err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Closing browser session")
		}
	}()

	// Init → LoggingIn
	state = StateLoggingIn
	log.Debug().Str("url", site.LoginURL).Msg("Opening login page")
	if err := s.within(ctx, s.opts.PageTimeout, func(ctx context.Context) error {
		return sess.Navigate(ctx, site.LoginURL)
	}); err != nil {
		return fail(classify(err, ErrNavigation, ErrNavigation), err)
	}

	loc := site.Locators
	if err := s.within(ctx, s.opts.PageTimeout, func(ctx context.Context) error {
		if err := sess.WaitFor(ctx, loc.UsernameInput); err != nil {
			return err
		}
		if err := sess.Type(ctx, loc.UsernameInput, s.creds.Username); err != nil {
			return err
		}
		return sess.Type(ctx, loc.PasswordInput, s.creds.Password)
	}); err != nil {
		return fail(classify(err, ErrSelectorNotFound, ErrSelectorNotFound), err)
	}

	var outcome NavOutcome
	if err := s.within(ctx, 2*s.opts.PageTimeout, func(ctx context.Context) error {
		var err error
		outcome, err = sess.Submit(ctx, loc.LoginButton, s.opts.PageTimeout)
		return err
	}); err != nil {
		return fail(classify(err, ErrSelectorNotFound, ErrSelectorNotFound), err)
	}
	if outcome == SoftTimeout {
		log.Warn().Msg("No navigation after login, continuing")
	}
	if err := s.sleep(ctx, s.opts.LoginPause); err != nil {
		return fail(classify(err, ErrTimeout, ErrTimeout), err)
	}

	state = StateNavigatingToListing
	log.Debug().Str("url", site.ListingURL).Msg("Opening listing page")
	if err := s.within(ctx, s.opts.PageTimeout, func(ctx context.Context) error {
		return sess.Navigate(ctx, site.ListingURL)
	}); err != nil {
		return fail(classify(err, ErrNavigation, ErrNavigation), err)
	}

	state = StateWaitingForContent
	if err := s.within(ctx, s.opts.ContentTimeout, func(ctx context.Context) error {
		return sess.WaitFor(ctx, loc.WaitForElement)
	}); err != nil {
		return fail(classify(err, ErrTimeout, ErrSelectorNotFound), err)
	}
	if err := s.sleep(ctx, s.opts.SettleDelay); err != nil {
		return fail(classify(err, ErrTimeout, ErrTimeout), err)
	}

	state = StateExtracting
	var html string
	if err := s.within(ctx, s.opts.PageTimeout, func(ctx context.Context) error {
		var err error
		html, err = sess.HTML(ctx)
		return err
	}); err != nil {
		return fail(classify(err, ErrTimeout, ErrExtraction), err)
	}
	records, err := ParseListing(html, site)
	if err != nil {
		return fail(ErrExtraction, err)
	}

	state = StateDone
	end := s.now()
	log.Info().Int("robots", len(records)).Str("login", outcome.String()).Msg("Site scraped")
	return model.SiteScrapeResult{
		SiteID:     site.ID,
		Robots:     records,
		ScrapedAt:  end,
		Success:    true,
		DurationMs: end.Sub(start).Milliseconds(),
	}
}

func (s *Scraper) failed(siteID string, start time.Time, err *StepError) model.SiteScrapeResult {
	end := s.now()
	return model.SiteScrapeResult{
		SiteID:     siteID,
		Robots:     []model.RawRecord{},
		ScrapedAt:  end,
		Success:    false,
		Error:      err.Error(),
		Stage:      string(err.State),
		DurationMs: end.Sub(start).Milliseconds(),
	}
}

// within runs fn under a timeout derived from ctx. A zero timeout means
// only ctx bounds fn.
func (s *Scraper) within(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
