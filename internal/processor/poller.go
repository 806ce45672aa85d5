package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/gapfinder/internal/cache"
)

const refreshTimeout = 5 * time.Minute

// Poller re-runs Refresh on an interval and whenever the cache reports that
// connectivity came back.
type Poller struct {
	refresher *Refresher
	cache     RecordCache
	interval  time.Duration
	trigger   chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func NewPoller(r *Refresher, c RecordCache, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Poller{
		refresher: r,
		cache:     c,
		interval:  interval,
		trigger:   make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
}

// Start runs an immediate refresh and then begins the polling loop.
func (p *Poller) Start() {
	unsubscribe := p.cache.Subscribe(func(ev cache.StatusEvent) {
		if ev.Online {
			p.Trigger()
		}
	})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer unsubscribe()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			p.runOnce()

			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
			case <-p.trigger:
				slog.Info("Connectivity restored, refreshing dataset")
			}
		}
	}()
}

// Trigger requests an out-of-band refresh. Requests made while one is pending coalesce.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	res, err := p.refresher.Refresh(ctx)
	if err != nil {
		slog.Error("Poller refresh failed", "error", err, "serving", res.Source)
	}
}

// Stop stops the poller gracefully.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}
