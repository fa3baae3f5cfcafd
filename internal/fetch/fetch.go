// Package fetch implements the bounded-retry product page fetcher with
// status-aware branching. The per-status behavior encodes anti-bot evasion
// assumptions: 403 means "try again slightly differently", 429 means "the
// server wants a longer pause", 404 means "stop now".
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

// Result is the outcome of a successful or terminal fetch attempt.
type Result struct {
	StatusCode int
	Body       string
}

// Config configures the fetcher.
type Config struct {
	// Timeout is the per-request HTTP timeout. Default: 30s.
	Timeout time.Duration
	// MaxAttempts bounds the retry loop. Default: 3.
	MaxAttempts int
	// MaxBytes caps response body size. Default: 10MB.
	MaxBytes int64
	// RetryDelayMin/Max bound the randomized pre-retry delay.
	// Defaults: 3s / 8s.
	RetryDelayMin time.Duration
	RetryDelayMax time.Duration
	// RateLimitCooldown is the fixed pause after a 429. Default: 15s.
	RateLimitCooldown time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.RetryDelayMin <= 0 {
		c.RetryDelayMin = 3 * time.Second
	}
	if c.RetryDelayMax <= c.RetryDelayMin {
		c.RetryDelayMax = c.RetryDelayMin + 5*time.Second
	}
	if c.RateLimitCooldown <= 0 {
		c.RateLimitCooldown = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher issues GET requests carrying a browser fingerprint's cookies and
// headers.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Fetch retrieves url with bounded retries. Policy per attempt:
//
//   - attempt 1 sends headers as given; attempts >= 2 add cache-busting
//     headers and perturb the user-agent minor version
//   - a randomized delay precedes every retry (not the first attempt)
//   - 200 and 404 return immediately (success and terminal miss)
//   - 403 consumes the attempt; 429 sleeps a fixed cooldown first
//   - transport errors and timeouts consume the attempt
//
// Exhausting all attempts returns (nil, nil): absence of a page is an
// expected per-item outcome, not an error of the fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string, cookies map[string]string, header http.Header) (*Result, error) {
	log := f.cfg.Logger

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.retryDelay()
			log.Debug("fetch: retrying", "url", url, "attempt", attempt, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, retryable, err := f.attempt(ctx, url, cookies, header, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("fetch: request failed", "url", url, "attempt", attempt, "error", err)
			continue
		}
		if res != nil {
			return res, nil
		}
		if !retryable {
			return nil, nil
		}
	}

	log.Warn("fetch: all attempts exhausted", "url", url, "attempts", f.cfg.MaxAttempts)
	return nil, nil
}

// attempt runs one GET. It returns a non-nil Result for terminal outcomes
// (200 and 404), retryable=true for statuses that should consume an attempt.
func (f *Fetcher) attempt(ctx context.Context, url string, cookies map[string]string, header http.Header, attempt int) (*Result, bool, error) {
	log := f.cfg.Logger

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header = perturbHeader(header, attempt)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes))
		if err != nil {
			return nil, true, fmt.Errorf("fetch: read body: %w", err)
		}
		return &Result{StatusCode: resp.StatusCode, Body: string(body)}, false, nil

	case resp.StatusCode == http.StatusNotFound:
		// The page does not exist; retrying cannot change that.
		log.Debug("fetch: page not found", "url", url)
		return &Result{StatusCode: resp.StatusCode}, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		log.Warn("fetch: rate limited, cooling down", "url", url, "cooldown", f.cfg.RateLimitCooldown)
		if err := sleepCtx(ctx, f.cfg.RateLimitCooldown); err != nil {
			return nil, false, err
		}
		return nil, true, nil

	case resp.StatusCode == http.StatusForbidden:
		log.Warn("fetch: forbidden", "url", url, "attempt", attempt)
		return nil, true, nil

	default:
		log.Warn("fetch: unexpected status", "url", url, "status", resp.StatusCode)
		return nil, true, nil
	}
}

// perturbHeader copies header, adding cache-busting fields and bumping the
// user-agent minor version on retries to reduce fingerprint staleness.
func perturbHeader(header http.Header, attempt int) http.Header {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if attempt > 1 {
		h.Set("Cache-Control", "no-cache")
		h.Set("Pragma", "no-cache")
	}
	if attempt == 2 {
		if ua := h.Get("User-Agent"); strings.Contains(ua, "Chrome/120") {
			h.Set("User-Agent", strings.ReplaceAll(ua, "Chrome/120", "Chrome/121"))
		}
	}
	return h
}

func (f *Fetcher) retryDelay() time.Duration {
	span := f.cfg.RetryDelayMax - f.cfg.RetryDelayMin
	return f.cfg.RetryDelayMin + time.Duration(rand.Int63n(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
