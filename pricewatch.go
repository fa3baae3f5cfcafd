// Package pricewatch monitors product prices on ozon.ru. Each monitoring
// cycle downloads every tracked product page, extracts the price, compares
// it with the last known one and persists observations, change records and
// cycle statistics through a set of sinks (JSON/CSV files, SQLite).
package pricewatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/internal/compare"
	"github.com/hazyhaar/pricewatch/internal/extract"
	"github.com/hazyhaar/pricewatch/internal/fetch"
	"github.com/hazyhaar/pricewatch/internal/session"
	"github.com/hazyhaar/pricewatch/internal/sink"
	"github.com/hazyhaar/pricewatch/internal/store"
	"github.com/hazyhaar/pricewatch/record"
)

// fingerprints and pageFetcher narrow the session and fetch layers to what
// the cycle loop calls on them.
type fingerprints interface {
	Acquire(ctx context.Context) *session.Fingerprint
}

type pageFetcher interface {
	Fetch(ctx context.Context, url string, cookies map[string]string, header http.Header) (*fetch.Result, error)
}

// Monitor owns the whole monitoring pipeline. At most one cycle runs at a
// time; concurrent triggers get ErrCycleRunning.
type Monitor struct {
	cfg       Config
	tracker   *Tracker
	sessions  fingerprints
	fetcher   pageFetcher
	extractor *extract.Extractor
	router    *sink.Router
	fileSink  *sink.FileSink
	dbSink    *sink.DBSink
	logger    *slog.Logger

	runMu sync.Mutex // held for the duration of a cycle

	mu    sync.Mutex // guards cycle and last
	cycle int
	last  *record.CycleResult
}

// New builds a Monitor from cfg. The data directory is created if missing.
// With an empty cfg.DB.Path the monitor runs file-only.
func New(cfg Config, logger *slog.Logger) (*Monitor, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("pricewatch: create data dir: %w", err)
	}
	if cfg.SaveHTML {
		if err := os.MkdirAll(cfg.PagesDir(), 0o755); err != nil {
			return nil, fmt.Errorf("pricewatch: create pages dir: %w", err)
		}
	}

	tracker, err := NewTracker(cfg.PagesPath(), logger)
	if err != nil {
		return nil, err
	}

	fileSink := sink.NewFileSink(cfg.HistoryPath(), cfg.ChangesPath(), logger)
	sinks := []sink.Sink{fileSink}

	var dbSink *sink.DBSink
	if cfg.DB.Path != "" {
		db, err := dbopen.Open(cfg.DB.Path,
			dbopen.WithMkdirAll(),
			dbopen.WithSchema(store.Schema),
		)
		if err != nil {
			// The database is an optional sink: a failed open degrades the
			// monitor to file-only persistence instead of refusing to start.
			logger.Warn("pricewatch: open database failed, continuing file-only",
				"path", cfg.DB.Path, "error", err)
		} else {
			dbSink = sink.NewDBSink(db, cfg.SaveHTML, logger)
			sinks = append(sinks, dbSink)
		}
	}

	m := &Monitor{
		cfg:     cfg,
		tracker: tracker,
		sessions: session.NewProvider(session.Config{
			HomeURL:  cfg.Site.HomeURL,
			Headless: cfg.Headless,
			Logger:   logger,
		}),
		fetcher: fetch.New(fetch.Config{
			Timeout:       cfg.RequestTimeout,
			MaxAttempts:   cfg.MaxAttempts,
			RetryDelayMin: cfg.RetryDelayMin,
			RetryDelayMax: cfg.RetryDelayMax,
			Logger:        logger,
		}),
		extractor: extract.New(),
		router:    sink.NewRouter(logger, sinks...),
		fileSink:  fileSink,
		dbSink:    dbSink,
		logger:    logger,
		cycle:     fileSink.LastCycle(),
	}
	return m, nil
}

// Tracker exposes the tracked-product set for the API layer.
func (m *Monitor) Tracker() *Tracker { return m.tracker }

// FileSink exposes the JSON/CSV sink, the source of truth for history reads.
func (m *Monitor) FileSink() *sink.FileSink { return m.fileSink }

// Store returns the SQLite store, or nil when running file-only.
func (m *Monitor) Store() *store.Store {
	if m.dbSink == nil {
		return nil
	}
	return m.dbSink.Store()
}

// CurrentCycle returns the number of the last completed cycle.
func (m *Monitor) CurrentCycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycle
}

// LastResult returns the outcome of the last completed cycle, nil before
// the first one finishes.
func (m *Monitor) LastResult() *record.CycleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Close flushes and closes all sinks.
func (m *Monitor) Close() error {
	return m.router.Close()
}

// RunCycle executes one full monitoring cycle: warm up a browsing session,
// fetch every tracked page sequentially with randomized pacing, extract
// prices, compare against history and persist everything. Returns
// ErrCycleRunning when a cycle is already in flight.
func (m *Monitor) RunCycle(ctx context.Context) (*record.CycleResult, error) {
	if !m.runMu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer m.runMu.Unlock()
	return m.runCycleLocked(ctx, m.nextCycle()), nil
}

// RunCycleAsync starts a cycle in the background and returns the cycle
// number it was assigned. It fails fast with ErrCycleRunning instead of
// queueing when one is already in flight.
func (m *Monitor) RunCycleAsync(ctx context.Context) (int, error) {
	if !m.runMu.TryLock() {
		return 0, ErrCycleRunning
	}
	cycle := m.nextCycle()
	go func() {
		defer m.runMu.Unlock()
		m.runCycleLocked(ctx, cycle)
	}()
	return cycle, nil
}

// nextCycle reserves the next cycle number. Called with runMu held.
func (m *Monitor) nextCycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle++
	return m.cycle
}

func (m *Monitor) runCycleLocked(ctx context.Context, cycle int) *record.CycleResult {
	// An in-flight cycle runs to completion: cancelling the trigger context
	// must not abandon products mid-pass or lose gathered results.
	ctx = context.WithoutCancel(ctx)

	products := m.tracker.Products()

	m.logger.Info("pricewatch: cycle started", "cycle", cycle, "products", len(products))
	started := time.Now()

	// Previous observations are read before this cycle writes its own,
	// so every comparison sees the pre-cycle state.
	previous := m.fileSink.History()

	fp := m.sessions.Acquire(ctx)

	var prices []record.PriceObservation
	for i, p := range products {
		if i > 0 {
			m.pace()
		}

		page := m.fetchPage(ctx, fp, p, cycle, i+1)
		if err := m.router.RecordPage(ctx, page, page.Markup); err != nil {
			m.logger.Warn("pricewatch: record page", "product_id", p.ProductID, "error", err)
		}

		if page.Status != record.FetchSuccess {
			continue
		}

		price := m.extractor.Extract(page.Markup)
		if price == nil {
			m.logger.Warn("pricewatch: price not found",
				"product_id", p.ProductID, "cycle", cycle, "bytes", len(page.Markup))
			continue
		}

		prices = append(prices, record.PriceObservation{
			ProductID:      p.ProductID,
			URL:            p.URL,
			Cycle:          cycle,
			Index:          i + 1,
			Price:          price.Price,
			PriceFormatted: price.Formatted,
			Currency:       price.Currency,
			Source:         price.Source,
			Timestamp:      time.Now(),
		})
		m.logger.Info("pricewatch: price extracted",
			"product_id", p.ProductID, "price", price.Price, "source", price.Source)
	}

	changes := compare.Compare(prices, previous)
	stats := cycleStats(cycle, len(products), prices, changes)

	if err := m.router.RecordPrices(ctx, prices); err != nil {
		m.logger.Warn("pricewatch: record prices", "cycle", cycle, "error", err)
	}
	if err := m.router.RecordChanges(ctx, changes); err != nil {
		m.logger.Warn("pricewatch: record changes", "cycle", cycle, "error", err)
	}
	if err := m.router.RecordStats(ctx, stats); err != nil {
		m.logger.Warn("pricewatch: record stats", "cycle", cycle, "error", err)
	}

	result := &record.CycleResult{
		Cycle:   cycle,
		Prices:  prices,
		Changes: changes,
		Stats:   stats,
	}
	m.mu.Lock()
	m.last = result
	m.mu.Unlock()

	m.logger.Info("pricewatch: cycle finished",
		"cycle", cycle,
		"extracted", len(prices),
		"failed", stats.FailedParses,
		"changes", stats.PriceChanges,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return result
}

// fetchPage downloads one product page and never returns an error: fetch
// failures become error/exception results so one broken product cannot
// abort the cycle.
func (m *Monitor) fetchPage(ctx context.Context, fp *session.Fingerprint, p record.TrackedProduct, cycle, index int) record.PageFetchResult {
	page := record.PageFetchResult{
		ProductID: p.ProductID,
		URL:       p.URL,
		Cycle:     cycle,
		Index:     index,
		Timestamp: time.Now(),
	}

	headers := session.BuildHeaders(fp, m.cfg.Site.HomeURL)
	res, err := m.fetcher.Fetch(ctx, p.URL, fp.Cookies, headers)
	switch {
	case err != nil:
		page.Status = record.FetchException
		page.Error = err.Error()
		m.logger.Warn("pricewatch: fetch failed", "product_id", p.ProductID, "error", err)
	case res == nil:
		page.Status = record.FetchError
		page.Error = "all attempts exhausted"
		m.logger.Warn("pricewatch: fetch exhausted", "product_id", p.ProductID, "url", p.URL)
	case res.StatusCode != 200:
		page.Status = record.FetchError
		page.StatusCode = res.StatusCode
		page.Error = fmt.Sprintf("HTTP %d", res.StatusCode)
	default:
		page.Status = record.FetchSuccess
		page.StatusCode = res.StatusCode
		page.Markup = res.Body
		page.ContentLength = len(res.Body)
		if m.cfg.SaveHTML {
			page.MarkupFile = m.savePage(p.ProductID, cycle, page.Markup)
		}
	}
	return page
}

// savePage writes the markup snapshot to the pages directory and returns
// the file name, empty on failure.
func (m *Monitor) savePage(productID string, cycle int, markup string) string {
	name := fmt.Sprintf("product_%s_%s_cycle%d.html",
		productID, time.Now().Format("20060102_150405"), cycle)
	path := filepath.Join(m.cfg.PagesDir(), name)
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		m.logger.Warn("pricewatch: save page", "file", name, "error", err)
		return ""
	}
	return name
}

// pace sleeps a randomized delay between consecutive product fetches.
func (m *Monitor) pace() {
	span := m.cfg.RequestDelayMax - m.cfg.RequestDelayMin
	time.Sleep(m.cfg.RequestDelayMin + time.Duration(rand.Int63n(int64(span))))
}

func cycleStats(cycle, total int, prices []record.PriceObservation, changes []record.ChangeRecord) record.CycleStats {
	stats := record.CycleStats{
		Cycle:            cycle,
		TotalProducts:    total,
		SuccessfulParses: len(prices),
		FailedParses:     total - len(prices),
		Timestamp:        time.Now(),
	}
	for _, c := range changes {
		switch c.Status {
		case record.ChangeIncreased:
			stats.PriceChanges++
			stats.Increased++
		case record.ChangeDecreased:
			stats.PriceChanges++
			stats.Decreased++
		case record.ChangeNew:
			stats.NewProducts++
		}
	}
	return stats
}
