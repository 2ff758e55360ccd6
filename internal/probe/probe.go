// Package probe implements bounded, fixed-interval readiness probing.
// Services inside a freshly started container need time to come up, so
// every connect path retries a liveness check before declaring success.
package probe

import (
	"context"
	"time"

	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// Config is the retry policy for a readiness probe. The zero value is
// replaced by defaults; tests shrink the interval to avoid real sleeps.
type Config struct {
	Retries  int
	Interval time.Duration
}

// DefaultConfig matches the startup time of the sandbox image on a warm
// host with comfortable headroom.
var DefaultConfig = Config{Retries: 10, Interval: time.Second}

func (c Config) withDefaults() Config {
	if c.Retries <= 0 {
		c.Retries = DefaultConfig.Retries
	}
	if c.Interval <= 0 {
		c.Interval = DefaultConfig.Interval
	}
	return c
}

// Run calls check until it succeeds or the retry budget is exhausted.
// Exhaustion surfaces as a ConnectionError naming the endpoint; context
// cancellation surfaces as the context's error.
func Run(ctx context.Context, cfg Config, endpoint string, check func(context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for i := 0; i < cfg.Retries; i++ {
		if lastErr = check(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
	return &errdefs.ConnectionError{Endpoint: endpoint, Attempts: cfg.Retries}
}
