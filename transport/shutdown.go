package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Drainer tracks in-flight requests so a transport can stop accepting new
// work and wait for the remainder to finish before shutting down.
type Drainer struct {
	timeout    time.Duration
	drainDelay time.Duration

	onDrainStart func()
	onComplete   func(err error)

	draining  atomic.Bool
	inFlight  atomic.Int64
	doneCh    chan struct{}
	closeOnce sync.Once
}

// DrainerOption configures a Drainer.
type DrainerOption func(*Drainer)

// WithDrainTimeout sets the maximum time to wait for in-flight requests.
func WithDrainTimeout(d time.Duration) DrainerOption {
	return func(dr *Drainer) {
		dr.timeout = d
	}
}

// WithDrainDelay sets a delay before draining starts, giving load balancers
// time to remove the server from their pools.
func WithDrainDelay(d time.Duration) DrainerOption {
	return func(dr *Drainer) {
		dr.drainDelay = d
	}
}

// WithOnDrainStart sets a callback invoked when draining begins.
func WithOnDrainStart(fn func()) DrainerOption {
	return func(dr *Drainer) {
		dr.onDrainStart = fn
	}
}

// WithOnDrainComplete sets a callback invoked when draining finishes.
func WithOnDrainComplete(fn func(err error)) DrainerOption {
	return func(dr *Drainer) {
		dr.onComplete = fn
	}
}

// NewDrainer creates a Drainer with a 30 second default timeout.
func NewDrainer(opts ...DrainerOption) *Drainer {
	dr := &Drainer{
		timeout: 30 * time.Second,
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(dr)
	}
	return dr
}

// IsDraining reports whether new requests are being rejected.
func (dr *Drainer) IsDraining() bool {
	return dr.draining.Load()
}

// InFlight returns the number of requests currently being processed.
func (dr *Drainer) InFlight() int64 {
	return dr.inFlight.Load()
}

// Track registers a new request. It returns false when the transport is
// draining, in which case the request must be rejected.
func (dr *Drainer) Track() bool {
	if dr.draining.Load() {
		return false
	}
	dr.inFlight.Add(1)
	return true
}

// Complete unregisters a request previously registered with Track.
func (dr *Drainer) Complete() {
	dr.inFlight.Add(-1)
}

// Drain stops accepting new requests and blocks until in-flight requests
// finish or the drain timeout is reached.
func (dr *Drainer) Drain(ctx context.Context) error {
	if dr.drainDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dr.drainDelay):
		}
	}

	dr.draining.Store(true)
	if dr.onDrainStart != nil {
		dr.onDrainStart()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, dr.timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var drainErr error
loop:
	for {
		select {
		case <-timeoutCtx.Done():
			if dr.inFlight.Load() > 0 {
				drainErr = timeoutCtx.Err()
			}
			break loop
		case <-ticker.C:
			if dr.inFlight.Load() == 0 {
				break loop
			}
		}
	}

	dr.closeOnce.Do(func() {
		close(dr.doneCh)
	})

	if dr.onComplete != nil {
		dr.onComplete(drainErr)
	}
	return drainErr
}

// Done returns a channel that is closed once draining has finished.
func (dr *Drainer) Done() <-chan struct{} {
	return dr.doneCh
}

// WithShutdownTimeout sets the graceful shutdown timeout for the HTTP
// transport.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.shutdownTimeout = d
	}
}

// WithShutdownDrainDelay sets the drain delay for the HTTP transport.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drainDelay = d
	}
}
