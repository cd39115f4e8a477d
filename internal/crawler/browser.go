package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"robotregistry/internal/logging"
)

// ChromeOptions configures the headless Chrome used for scraping.
type ChromeOptions struct {
	ExecPath string // empty: look up Chrome on PATH
	Headless bool
}

// Chrome launches one Chrome process per session.
type Chrome struct {
	opts ChromeOptions
}

func NewChrome(opts ChromeOptions) *Chrome {
	return &Chrome{opts: opts}
}

func (c *Chrome) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1280, 800),
	)
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}

	log := logging.FromContext(ctx)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug().Msgf(format, args...)
		}),
	)

	// The first Run starts the browser and ties its lifetime to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on the session's tab, bounded by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// bind derives a context from the tab that ends when ctx ends.
func (s *chromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() {
			cancelDL()
			prev()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) WaitFor(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (s *chromeSession) Submit(ctx context.Context, selector string, wait time.Duration) (NavOutcome, error) {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	loaded := make(chan struct{}, 1)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return SoftTimeout, ctx.Err()
		}
		return SoftTimeout, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-loaded:
		return Navigated, nil
	case <-timer.C:
		return SoftTimeout, nil
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return SoftTimeout, ctx.Err()
		}
		return SoftTimeout, runCtx.Err()
	}
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *chromeSession) Close() error {
	var err error
	s.once.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return err
}
