package fetch

import (
	"context"
	"testing"
	"time"
)

func TestRegistrableDomainSimplification(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/path": "example.com",
		"http://sub.example.com":       "example.com",
		"https://example.com":          "example.com",
	}
	for in, want := range cases {
		got := registrableDomain(in)
		if got != want {
			t.Errorf("registrableDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDomainLimiterNoOpForUnconfiguredDomain(t *testing.T) {
	l := NewDomainLimiter(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx, "https://example.com"); err != nil {
		t.Errorf("unconfigured domain should never block: %v", err)
	}
}

func TestDomainLimiterThrottlesConfiguredDomain(t *testing.T) {
	l := NewDomainLimiter(map[string]float64{"example.com": 20})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx, "https://example.com/a"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://example.com/b"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	// At 20 req/s with a capacity-1 bucket the second token arrives ~50ms later.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second request on the same domain was not throttled (waited %v)", elapsed)
	}
}
