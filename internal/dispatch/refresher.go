package dispatch

import (
	"context"
	"sync"
	"time"

	logs "github.com/danmuck/wxdash/internal/logging"
)

const DefaultRefreshInterval = 10000 * time.Millisecond

// Refresher repeatedly asks for weather data for the stations reported by
// its StationSource. Start fires once immediately, then every interval.
type Refresher struct {
	dispatcher *Dispatcher
	source     StationSource
	interval   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(d *Dispatcher, source StationSource, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{dispatcher: d, source: source, interval: interval}
}

func (r *Refresher) Interval() time.Duration { return r.interval }

// Start begins the refresh loop under ctx. A running loop is restarted so at
// most one loop exists at a time.
func (r *Refresher) Start(ctx context.Context) {
	r.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go r.run(loopCtx, done)
}

// Stop cancels the loop and waits for it to exit. Safe to call when stopped.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	logs.Debugf("dispatch.Refresher.run start interval=%s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logs.Debugf("dispatch.Refresher.run stop")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	ids := r.source.ActiveStationIDs()
	// errors are logged by the dispatcher; the next tick retries
	_ = r.dispatcher.RequestWeatherData(ctx, ids)
}
