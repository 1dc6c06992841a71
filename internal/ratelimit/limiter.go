// Package ratelimit meters MCP tool calls. Simulation tools draw from a
// shared trial budget so one client cannot queue unbounded Monte Carlo work.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// TrialBudget is the limiter key shared by every simulation tool.
const TrialBudget = "trials"

// Limiter is a per-key token bucket. Requests may cost more than one token.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64 // capacity, also the initial fill
	nowFunc func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter refilling at rate tokens per second up to
// burst tokens.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(burst),
		nowFunc: time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN takes n tokens from key's bucket. Costs above the burst are
// charged as a full bucket so large requests remain possible when idle.
func (l *Limiter) AllowN(key string, n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = min(l.burst, b.tokens+l.rate*dt)
		b.last = now
	}

	cost := min(n, l.burst)
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// ToolLimiters maps tool names, plus TrialBudget, to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the default limits: a call rate per tool and a
// trial budget of 20k trials per second, bursting to 500k.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		TrialBudget:                   NewLimiter(20000, 500000),
		"nestsim_cohesion":            NewLimiter(1.0, 10),
		"nestsim_quorum":              NewLimiter(1.0, 10),
		"nestsim_speed_accuracy_cell": NewLimiter(10.0/60.0, 3),
		"nestsim_runs":                NewLimiter(2.0, 20),
	}
}

// CheckLimit charges one call to toolName. Tools without a limiter are
// always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}

// CheckTrials charges a call to toolName and then trials against the
// shared trial budget.
func CheckTrials(limiters ToolLimiters, toolName string, trials int) error {
	if err := CheckLimit(limiters, toolName); err != nil {
		return err
	}
	budget, ok := limiters[TrialBudget]
	if !ok {
		return nil
	}
	if !budget.AllowN(TrialBudget, float64(trials)) {
		return fmt.Errorf("trial budget exhausted for %s (%d trials requested), please try again shortly", toolName, trials)
	}
	return nil
}
