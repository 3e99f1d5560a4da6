package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// DomainLimiter throttles fetches per policy domain: a token bucket spaced by
// the policy's delay-between-requests plus a concurrency cap from its
// max-concurrent-requests value. Domains without a policy pass through.
type DomainLimiter struct {
	mu      sync.Mutex
	entries map[string]*domainEntry
}

type domainEntry struct {
	limiter *rate.Limiter
	sem     chan struct{}
}

// NewDomainLimiter creates an empty limiter.
func NewDomainLimiter() *DomainLimiter {
	return &DomainLimiter{entries: make(map[string]*domainEntry)}
}

// Acquire blocks until the domain's politeness constraints allow one fetch.
// The returned release func must be called when the fetch finishes. The first
// Acquire for a domain fixes its settings.
func (l *DomainLimiter) Acquire(ctx context.Context, domain string, p Politeness) (func(), error) {
	release := func() {}
	if domain == "" || (p.Delay <= 0 && p.MaxConcurrent <= 0) {
		return release, nil
	}
	entry := l.entry(strings.ToLower(domain), p)

	if entry.sem != nil {
		select {
		case entry.sem <- struct{}{}:
			release = func() { <-entry.sem }
		case <-ctx.Done():
			return nil, fmt.Errorf("domain slot wait canceled: %w", ctx.Err())
		}
	}
	if entry.limiter != nil {
		if err := entry.limiter.Wait(ctx); err != nil {
			release()
			return nil, fmt.Errorf("domain rate wait: %w", err)
		}
	}
	return release, nil
}

func (l *DomainLimiter) entry(domain string, p Politeness) *domainEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[domain]; ok {
		return e
	}
	e := &domainEntry{}
	if p.Delay > 0 {
		e.limiter = rate.NewLimiter(rate.Every(p.Delay), 1)
	}
	if p.MaxConcurrent > 0 {
		e.sem = make(chan struct{}, p.MaxConcurrent)
	}
	l.entries[domain] = e
	return e
}
