package middleware

import (
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/protocol"
)

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc func(*RequestContext) string
	logger  logging.Logger
}

// WithRateLimitKeyFunc sets a function to extract a rate limit key from
// requests, enabling per-client or per-method limits.
func WithRateLimitKeyFunc(fn func(*RequestContext) string) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l logging.Logger) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.logger = l
	}
}

// RateLimit returns middleware that limits request rate using a token bucket.
// The rate is requests per second; burst allows short spikes above it.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(_ *RequestContext) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(rc *RequestContext, next Next) error {
		key := cfg.keyFunc(rc)

		if !limiter.Allow(rc.Context(), key) {
			if cfg.logger != nil {
				cfg.logger.Warn("rate limit exceeded", &logging.Entry{
					Timestamp: time.Now().UTC(),
					Context: &logging.RequestDetails{
						Method:    rc.Request.Method,
						Transport: rc.Transport.Name,
						Timestamp: time.Now().UTC(),
					},
				})
			}
			return protocol.NewRateLimited("rate limit exceeded")
		}

		return next()
	}
}

// RateLimitByMethod applies a separate bucket per method name.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(rc *RequestContext) string {
			return rc.Request.Method
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

// RateLimitByPeer applies a separate bucket per transport peer address.
func RateLimitByPeer(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(rc *RequestContext) string {
			if rc.Transport.Peer != nil {
				return rc.Transport.Peer.Address
			}
			return "unknown"
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}
