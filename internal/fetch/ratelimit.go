// CLAUDE:SUMMARY Per-registrable-domain token-bucket rate limiting shared across concurrent pipelines.
package fetch

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// DomainLimiter serialises requests per registrable domain via a
// capacity-1 token bucket. Two watches on the same host wait on the same
// bucket; domains with no configured rate are unlimited.
type DomainLimiter struct {
	mu       sync.Mutex
	rates    map[string]float64 // requests/sec, keyed by registrable domain
	buckets  map[string]*rate.Limiter
}

// NewDomainLimiter builds a limiter from a registrable-domain → requests/sec
// table. Domains absent from rates are never throttled.
func NewDomainLimiter(rates map[string]float64) *DomainLimiter {
	return &DomainLimiter{
		rates:   rates,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a token is available for rawURL's registrable domain, or
// ctx is cancelled.
func (d *DomainLimiter) Wait(ctx context.Context, rawURL string) error {
	domain := registrableDomain(rawURL)
	limiter := d.limiterFor(domain)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (d *DomainLimiter) limiterFor(domain string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	if l, ok := d.buckets[domain]; ok {
		return l
	}
	r, ok := d.rates[domain]
	if !ok || r <= 0 {
		return nil
	}
	l := rate.NewLimiter(rate.Limit(r), 1)
	d.buckets[domain] = l
	return l
}

// registrableDomain extracts a host's registrable domain (last two labels)
// for use as a rate-limit bucket key. This is a deliberately simplified
// stand-in for a public-suffix-list lookup: adequate for grouping requests
// by "site" without pulling in an extra dependency the pack doesn't use.
func registrableDomain(rawURL string) string {
	host := hostOf(rawURL)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func hostOf(rawURL string) string {
	// Strip scheme.
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rawURL = rawURL[i+3:]
	}
	// Strip path/query.
	if i := strings.IndexAny(rawURL, "/?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	// Strip userinfo.
	if i := strings.LastIndex(rawURL, "@"); i >= 0 {
		rawURL = rawURL[i+1:]
	}
	// Strip port.
	if i := strings.LastIndex(rawURL, ":"); i >= 0 && !strings.Contains(rawURL[i:], "]") {
		rawURL = rawURL[:i]
	}
	return strings.ToLower(rawURL)
}
