package crawler

import (
	"context"
	"time"
)

// Credentials is the login pair applied to every configured site.
type Credentials struct {
	Username string
	Password string
}

// NavOutcome tells how a post-submit navigation wait ended.
type NavOutcome int

const (
	// Navigated means the page finished loading after submit.
	Navigated NavOutcome = iota
	// SoftTimeout means no navigation happened within the wait. Sites that
	// update the page in place after login end up here; it is not an error.
	SoftTimeout
)

func (o NavOutcome) String() string {
	if o == SoftTimeout {
		return "soft_timeout"
	}
	return "navigated"
}

// Session is one browser session scoped to a single site's scrape. Every
// call is bounded by ctx.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches an element.
	WaitFor(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	// Submit clicks selector and waits up to wait for a page load.
	Submit(ctx context.Context, selector string, wait time.Duration) (NavOutcome, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Browser opens sessions.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}
