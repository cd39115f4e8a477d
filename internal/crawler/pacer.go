package crawler

import (
	"context"
	"time"
)

// Pacer spaces out consecutive site scrapes. It only throttles load on the
// scraped consoles and carries no data.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay waits d between sites.
type FixedDelay time.Duration

func (d FixedDelay) Wait(ctx context.Context) error {
	return sleepContext(ctx, time.Duration(d))
}

// NoDelay proceeds immediately.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error { return ctx.Err() }
