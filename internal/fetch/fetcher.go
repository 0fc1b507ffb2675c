// CLAUDE:SUMMARY Dispatches a Watch's engine to the right acquisition strategy and enforces per-domain rate limits.
// Package fetch acquires raw bytes for a watch via one of four engines
// (http, js-render, rss, shell), enforcing per-domain rate limits and SSRF
// protection ahead of every network call.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devindudeman/kto/internal/safety"
	"github.com/devindudeman/kto/internal/store"
)

// Result is the outcome of a fetch.
type Result struct {
	Body        []byte
	ContentType string
	Title       string // populated by the js-render helper; empty otherwise
	StatusCode  int
	Hash        string // SHA-256 of Body
	ETag        string
	LastMod     string
	Changed     bool // false on 304 / unchanged hash
}

// Config configures the Fetcher.
type Config struct {
	Timeout       time.Duration // HTTP timeout. Default: 30s.
	ShellTimeout  time.Duration // shell engine timeout. Default: 30s.
	RenderTimeout time.Duration // js-render subprocess timeout. Default: 30s.
	MaxBytes      int64         // max response body size. Default: 10MB.
	UserAgent     string
	URLValidator  func(string) error
	RenderHelper  string             // path to the external js-render helper binary
	RateLimits    map[string]float64 // registrable domain -> requests/sec
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ShellTimeout <= 0 {
		c.ShellTimeout = 30 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "kto/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = safety.ValidateURL
	}
	if c.RenderHelper == "" {
		c.RenderHelper = "kto-render"
	}
}

// Fetcher performs the acquisition step of the pipeline.
type Fetcher struct {
	client  *http.Client
	config  Config
	limiter *DomainLimiter
}

// New creates a Fetcher with SSRF protection on redirects and a per-domain
// rate limiter built from cfg.RateLimits.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config:  cfg,
		limiter: NewDomainLimiter(cfg.RateLimits),
	}
}

// Fetch acquires raw bytes for w, dispatching on w.Engine. prevETag and
// prevLastMod drive conditional GET; prevHash is the prior snapshot's
// RawHash (SHA-256 of the raw body, not ContentHash) and drives the
// raw-fetch-unchanged short-circuit for engines that don't get a 304.
func (f *Fetcher) Fetch(ctx context.Context, w *store.Watch, prevETag, prevLastMod, prevHash string) (*Result, error) {
	if w.Engine == store.EngineShell {
		return f.fetchShell(ctx, w)
	}

	if err := f.limiter.Wait(ctx, w.URL); err != nil {
		return nil, newError(KindTransport, err)
	}

	switch w.Engine {
	case store.EngineJSRender:
		return f.fetchJSRender(ctx, w)
	case store.EngineRSS:
		return f.fetchHTTP(ctx, w, prevETag, prevLastMod, prevHash, true)
	default:
		return f.fetchHTTP(ctx, w, prevETag, prevLastMod, prevHash, false)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, w *store.Watch, etag, lastMod, prevHash string, preferXML bool) (*Result, error) {
	if err := f.config.URLValidator(w.URL); err != nil {
		return nil, newError(KindTransport, fmt.Errorf("URL blocked (SSRF): %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return nil, newError(KindTransport, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}
	if preferXML {
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5")
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTimeout, err)
		}
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{
			StatusCode: resp.StatusCode,
			Changed:    false,
			ETag:       resp.Header.Get("ETag"),
			LastMod:    resp.Header.Get("Last-Modified"),
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode}
	}

	body, err := safety.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, newError(KindTooLarge, err)
	}

	hash := hashBytes(body)
	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		Hash:        hash,
		ETag:        resp.Header.Get("ETag"),
		LastMod:     resp.Header.Get("Last-Modified"),
		Changed:     prevHash == "" || hash != prevHash,
	}, nil
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return fmt.Sprintf("%x", h)
}

func classifyTransportError(err error) *Error {
	msg := err.Error()
	if strings.Contains(msg, "no such host") || strings.Contains(msg, "lookup") {
		return newError(KindDNS, err)
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return newError(KindTimeout, err)
	}
	return newError(KindTransport, err)
}
