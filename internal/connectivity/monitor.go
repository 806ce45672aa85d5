// Package connectivity probes a URL and reports online/offline transitions.
package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 5 * time.Second

// StatusSetter receives probe outcomes.
type StatusSetter interface {
	Online() bool
	SetOnline(ctx context.Context, online bool)
}

type Monitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	target   StatusSetter

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(url string, interval time.Duration, target StatusSetter) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: probeTimeout},
		target:   target,
		stopChan: make(chan struct{}),
	}
}

// Probe reports whether the check URL answers. Any HTTP response counts as
// reachable; only transport failures mean offline.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.url == "" {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		slog.Debug("Invalid connectivity check URL", "url", m.url, "error", err)
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		slog.Debug("Connectivity probe failed", "url", m.url, "error", err)
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

// Check probes once and forwards any change to the target.
func (m *Monitor) Check(ctx context.Context) {
	online := m.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	if online != m.target.Online() {
		m.target.SetOnline(ctx, online)
	}
}

// Start begins the probe loop.
func (m *Monitor) Start() {
	if m.url == "" {
		slog.Info("No connectivity check URL, assuming always online")
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout+time.Minute)
			m.Check(ctx)
			cancel()

			select {
			case <-m.stopChan:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the monitor gracefully.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
}
