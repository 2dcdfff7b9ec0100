package store

import (
	"context"
	"sync"
	"time"
)

// defaultPollInterval matches the refresh cadence of the mailbox views.
const defaultPollInterval = 2 * time.Second

// Poller invokes a fetch function at a fixed cadence for as long as its
// owning view is active. The first run happens immediately on Start. Runs
// are not serialized: when a fetch outlasts the interval the next one
// overlaps it, and the store's sequence guard sorts out stale results.
type Poller struct {
	interval time.Duration
	fn       func(context.Context)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewPoller creates a poller around fn. A non-positive interval falls back
// to the default cadence.
func NewPoller(interval time.Duration, fn func(context.Context)) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{interval: interval, fn: fn}
}

// Start launches the polling loop and returns immediately. The loop stops
// when ctx is cancelled or Stop is called; starting a running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		go p.fn(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				go p.fn(ctx)
			}
		}
	}()
}

// Stop halts the loop deterministically. Fetches already in flight are not
// interrupted; their results may still be discarded by the store.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}
