// Package ratelimit paces calls to external collaborators. Instead of
// sleeps scattered through orchestration code, every caller asks a shared
// Pacer to wait before the next request goes out.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pacer enforces a fixed minimum interval between external calls and an
// optional daily call budget per provider. It is not adaptive backoff;
// retries layer their own delays on top.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	counts    map[string]int
	budgets   map[string]int
	maxTotal  int
	total     int
	resetTime time.Time
}

// NewPacer creates a pacer with the given minimum inter-call interval.
// maxTotal caps the combined calls per day; 0 means unlimited.
func NewPacer(interval time.Duration, maxTotal int) *Pacer {
	return &Pacer{
		interval:  interval,
		counts:    make(map[string]int),
		budgets:   make(map[string]int),
		maxTotal:  maxTotal,
		resetTime: time.Now().Add(24 * time.Hour),
	}
}

// SetBudget caps calls for a single provider per day. 0 removes the cap.
func (p *Pacer) SetBudget(provider string, max int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.budgets[provider] = max
}

// Allow reports whether provider still has budget for another call.
func (p *Pacer) Allow(provider string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checkReset()

	if max := p.budgets[provider]; max > 0 && p.counts[provider] >= max {
		slog.Warn("provider call budget reached", "provider", provider, "used", p.counts[provider], "max", max)
		return false
	}
	if p.maxTotal > 0 && p.total >= p.maxTotal {
		slog.Warn("total call budget reached", "used", p.total, "max", p.maxTotal)
		return false
	}
	return true
}

// Wait blocks until the minimum interval since the previous call has
// elapsed, charges one call to provider, and returns. It fails when the
// budget is exhausted or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context, provider string) error {
	p.mu.Lock()
	p.checkReset()

	if max := p.budgets[provider]; max > 0 && p.counts[provider] >= max {
		p.mu.Unlock()
		return fmt.Errorf("call budget exhausted for %s", provider)
	}
	if p.maxTotal > 0 && p.total >= p.maxTotal {
		p.mu.Unlock()
		return fmt.Errorf("total call budget exhausted")
	}

	var sleep time.Duration
	if !p.last.IsZero() {
		if elapsed := time.Since(p.last); elapsed < p.interval {
			sleep = p.interval - elapsed
		}
	}
	// Reserve the slot before unlocking so concurrent callers queue up.
	p.last = time.Now().Add(sleep)
	p.counts[provider]++
	p.total++
	p.mu.Unlock()

	if sleep > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil
}

// Stats returns per-provider call counts since the last daily reset.
func (p *Pacer) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int, len(p.counts)+1)
	for provider, n := range p.counts {
		out[provider] = n
	}
	out["total"] = p.total
	return out
}

func (p *Pacer) checkReset() {
	if time.Now().After(p.resetTime) {
		slog.Info("resetting pacer call counters", "total", p.total)
		p.counts = make(map[string]int)
		p.total = 0
		p.resetTime = time.Now().Add(24 * time.Hour)
	}
}
