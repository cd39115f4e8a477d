// Command registry scrapes the robot consoles and maintains the merged
// robot catalog.
//
//	registry scrape --site a.example
//	registry merge
//	registry run --schedule "0 */6 * * *"
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
