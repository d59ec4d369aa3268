// Package ratelimit provides per-adapter delay/backoff profiles, which pace
// requests with plain timers, and the public HTTP API's per-IP limiter,
// which is built on golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests for one adapter run.
type Limiter interface {
	// Wait blocks until the next request is allowed to proceed.
	Wait(ctx context.Context) error
}

// WecomStepper implements Wecom's adaptive delay: ≤100 requests/1200ms,
// ≤200/1800ms, else 2500ms, resetting per run.
type WecomStepper struct {
	mu    sync.Mutex
	count int
}

// NewWecomStepper returns a fresh per-run stepper.
func NewWecomStepper() *WecomStepper {
	return &WecomStepper{}
}

func (w *WecomStepper) Wait(ctx context.Context) error {
	w.mu.Lock()
	w.count++
	n := w.count
	w.mu.Unlock()

	var delay time.Duration
	switch {
	case n <= 100:
		delay = 1200 * time.Millisecond
	case n <= 200:
		delay = 1800 * time.Millisecond
	default:
		delay = 2500 * time.Millisecond
	}
	return sleepCtx(ctx, delay)
}

// TaobaoLimiter implements Taobao's ~2000ms base + 1000ms jitter delay,
// with a 60-second break every 100 requests.
type TaobaoLimiter struct {
	mu    sync.Mutex
	count int
	rnd   *rand.Rand
}

// NewTaobaoLimiter returns a fresh per-run limiter. seed varies the jitter
// sequence across limiter instances without depending on wall-clock time.
func NewTaobaoLimiter(seed int64) *TaobaoLimiter {
	return &TaobaoLimiter{rnd: rand.New(rand.NewSource(seed))}
}

func (t *TaobaoLimiter) Wait(ctx context.Context) error {
	t.mu.Lock()
	t.count++
	n := t.count
	jitter := time.Duration(t.rnd.Int63n(int64(1000 * time.Millisecond)))
	t.mu.Unlock()

	delay := 2000*time.Millisecond + jitter
	if err := sleepCtx(ctx, delay); err != nil {
		return err
	}

	if n%100 == 0 {
		return sleepCtx(ctx, 60*time.Second)
	}
	return nil
}

// FixedDelay paces requests at one fixed interval, for sources with no
// documented adaptive profile of their own.
type FixedDelay struct {
	mu    sync.Mutex
	last  time.Time
	delay time.Duration
}

// NewFixedDelay returns a limiter enforcing at least delay between calls.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay}
}

func (f *FixedDelay) Wait(ctx context.Context) error {
	f.mu.Lock()
	wait := time.Duration(0)
	if !f.last.IsZero() {
		if elapsed := time.Since(f.last); elapsed < f.delay {
			wait = f.delay - elapsed
		}
	}
	f.last = time.Now().Add(wait)
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleepCtx(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PerIPLimiters manages one golang.org/x/time/rate.Limiter per client IP,
// backing the public read endpoints' 60/minute/IP cap.
type PerIPLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewPerIPLimiters returns a registry allowing perMinute requests/minute,
// with a burst equal to perMinute.
func NewPerIPLimiters(perMinute int) *PerIPLimiters {
	return &PerIPLimiters{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// Allow reports whether a new request from ip is permitted right now.
func (p *PerIPLimiters) Allow(ip string) bool {
	p.mu.Lock()
	lim, ok := p.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(p.r, p.burst)
		p.limiters[ip] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
