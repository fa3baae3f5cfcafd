// Package session acquires a believable browser fingerprint for subsequent
// plain HTTP requests: cookies, user-agent, locale, and viewport read back
// from a real Chrome instance, with a static fallback profile when the
// browser cannot be driven.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fingerprint is the set of browser-identifying signals used to make plain
// HTTP requests look like they originate from a real session. Immutable
// once produced.
type Fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	Cookies        map[string]string
	ViewportWidth  int
	ViewportHeight int
	Headless       bool
}

// Config configures the session provider.
type Config struct {
	// HomeURL is the site entry page visited to collect cookies.
	HomeURL string
	// Headless controls the preferred browser mode. A failed headful
	// attempt is retried once with headless forced before falling back.
	Headless bool
	// NavigateTimeout bounds home page navigation. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.HomeURL == "" {
		c.HomeURL = "https://www.ozon.ru"
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Provider acquires fingerprints. Each acquisition drives its own scoped
// browser process, torn down before returning on every path.
type Provider struct {
	cfg Config
}

// NewProvider creates a Provider.
func NewProvider(cfg Config) *Provider {
	cfg.defaults()
	return &Provider{cfg: cfg}
}

// Acquire obtains a fingerprint. It never fails the caller: any browser
// error cascades to a retry with headless forced (when the first attempt
// was headful) and finally to the static fallback profile.
func (p *Provider) Acquire(ctx context.Context) *Fingerprint {
	log := p.cfg.Logger

	fp, err := p.fromBrowser(ctx, p.cfg.Headless)
	if err == nil {
		return fp
	}
	log.Warn("session: browser acquisition failed", "headless", p.cfg.Headless, "error", err)

	if !p.cfg.Headless {
		fp, err = p.fromBrowser(ctx, true)
		if err == nil {
			return fp
		}
		log.Warn("session: headless retry failed", "error", err)
	}

	log.Info("session: using static fallback fingerprint")
	return StaticFallback()
}

// fromBrowser launches Chrome, visits the home page with a short
// settle-and-scroll sequence, and reads navigator properties and cookies.
// The browser process is released on every exit path.
func (p *Provider) fromBrowser(ctx context.Context, headless bool) (_ *Fingerprint, err error) {
	log := p.cfg.Logger

	l := launcher.New().
		Headless(headless).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true)
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("session: launch chrome: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("session: connect: %w", err)
	}
	defer browser.Close()

	// stealth.Page suppresses navigator.webdriver and related automation
	// signals before any site script runs.
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("session: stealth page: %w", err)
	}

	// Report the same user-agent that will be sent over plain HTTP, so the
	// cookies issued to this session stay valid for the fetcher.
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      defaultUserAgent,
		AcceptLanguage: "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		Platform:       "Win32",
	}); err != nil {
		return nil, fmt.Errorf("session: user-agent override: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(p.cfg.HomeURL); err != nil {
		return nil, fmt.Errorf("session: navigate %s: %w", p.cfg.HomeURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("session: wait load timeout", "url", p.cfg.HomeURL, "error", err)
	}

	p.settle(page, headless)

	fp := &Fingerprint{Headless: headless, Cookies: map[string]string{}}

	if res, err := page.Eval(`() => navigator.userAgent`); err == nil {
		fp.UserAgent = res.Value.Str()
	}
	if res, err := page.Eval(`() => navigator.language || ""`); err == nil {
		fp.AcceptLanguage = res.Value.Str()
	}
	if res, err := page.Eval(`() => navigator.platform || ""`); err == nil {
		fp.Platform = res.Value.Str()
	}
	if res, err := page.Eval(`() => window.innerWidth`); err == nil {
		fp.ViewportWidth = res.Value.Int()
	}
	if res, err := page.Eval(`() => window.innerHeight`); err == nil {
		fp.ViewportHeight = res.Value.Int()
	}

	cookies, err := page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("session: read cookies: %w", err)
	}
	for _, c := range cookies {
		fp.Cookies[c.Name] = c.Value
	}

	fp.applyDefaults()
	log.Info("session: fingerprint acquired", "cookies", len(fp.Cookies), "headless", headless)
	return fp, nil
}

// settle mimics a human pausing and scrolling after page load. Headless
// sessions use shorter pauses; headful ones scroll at reading pace.
func (p *Provider) settle(page *rod.Page, headless bool) {
	wait := 5 * time.Second
	pause := time.Second
	if headless {
		wait = 3 * time.Second
		pause = 500 * time.Millisecond
	}
	time.Sleep(wait)

	for _, offset := range []int{300, 600} {
		if _, err := page.Eval(fmt.Sprintf(`() => window.scrollTo(0, %d)`, offset)); err != nil {
			return
		}
		time.Sleep(pause)
	}
}

func (f *Fingerprint) applyDefaults() {
	if f.UserAgent == "" {
		f.UserAgent = defaultUserAgent
	}
	if f.AcceptLanguage == "" {
		f.AcceptLanguage = "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	if f.Platform == "" {
		f.Platform = "Win32"
	}
	if f.ViewportWidth == 0 {
		f.ViewportWidth = 1920
	}
	if f.ViewportHeight == 0 {
		f.ViewportHeight = 1080
	}
}

// StaticFallback returns the hard-coded fingerprint used when no browser
// session can be established.
func StaticFallback() *Fingerprint {
	return &Fingerprint{
		UserAgent:      defaultUserAgent,
		AcceptLanguage: "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		Platform:       "Win32",
		Cookies: map[string]string{
			"__Secure-refresh_token": "dummy_token",
			"csrf_token":             "dummy_csrf",
			"sessionid":              "dummy_session",
		},
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Headless:       true,
	}
}

// BuildHeaders produces the realistic header set matching a fingerprint.
func BuildHeaders(fp *Fingerprint, referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", fp.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	// Accept-Encoding is left to the transport: setting it by hand would
	// disable net/http's transparent gzip decoding.
	h.Set("Accept-Language", fp.AcceptLanguage)
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")
	h.Set("sec-ch-ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("DNT", "1")
	h.Set("Referer", referer)
	return h
}
