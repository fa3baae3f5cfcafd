package pricewatch

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pricewatch/internal/fetch"
	"github.com/hazyhaar/pricewatch/internal/session"
)

const productMarkup = `<html><head><script type="application/ld+json">
{"@type":"Product","offers":{"price":"12990","priceCurrency":"RUB"}}
</script></head><body></body></html>`

// staticSessions hands out the fallback fingerprint without driving a
// browser.
type staticSessions struct{}

func (staticSessions) Acquire(ctx context.Context) *session.Fingerprint {
	return session.StaticFallback()
}

// countingFetcher serves a fixed page body and counts requests.
type countingFetcher struct {
	mu    sync.Mutex
	calls int
	body  string
}

func (f *countingFetcher) Fetch(ctx context.Context, url string, cookies map[string]string, header http.Header) (*fetch.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &fetch.Result{StatusCode: 200, Body: f.body}, nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestMonitor(t *testing.T) (*Monitor, *countingFetcher) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.SaveHTML = false
	cfg.RequestDelayMin = time.Millisecond
	cfg.RequestDelayMax = 2 * time.Millisecond

	m, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })

	f := &countingFetcher{body: productMarkup}
	m.sessions = staticSessions{}
	m.fetcher = f
	return m, f
}

// WHAT: a database path that cannot be opened leaves the monitor running
// with file sinks only instead of failing startup.
// WHY: the database is auxiliary storage; price collection must not depend
// on it being available.
func TestNewDegradesToFileOnly(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.SaveHTML = false
	cfg.RequestDelayMin = time.Millisecond
	cfg.RequestDelayMax = 2 * time.Millisecond
	cfg.DB.Path = filepath.Join(blocker, "monitor.db") // parent is a regular file

	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if m.Store() != nil {
		t.Fatal("expected no store after a failed database open")
	}

	// The file pipeline still works end to end.
	m.sessions = staticSessions{}
	m.fetcher = &countingFetcher{body: productMarkup}
	if _, err := m.Tracker().Add("https://www.ozon.ru/product/item-111111111/"); err != nil {
		t.Fatal(err)
	}
	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(result.Prices) != 1 {
		t.Fatalf("extracted %d prices, want 1", len(result.Prices))
	}
}

// WHAT: an in-flight cycle finishes the full product pass and persists its
// results even when the triggering context is cancelled.
func TestRunCycleCompletesAfterCancel(t *testing.T) {
	m, f := newTestMonitor(t)
	for _, u := range []string{
		"https://www.ozon.ru/product/item-111111111/",
		"https://www.ozon.ru/product/item-222222222/",
	} {
		if _, err := m.Tracker().Add(u); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := f.count(); got != 2 {
		t.Errorf("fetched %d products, want 2", got)
	}
	if len(result.Prices) != 2 {
		t.Errorf("extracted %d prices, want 2", len(result.Prices))
	}
	if got := len(m.FileSink().History()); got != 2 {
		t.Errorf("persisted %d observations, want 2", got)
	}
}

// WHAT: RunCycleAsync reports the exact cycle number the background run
// was assigned.
func TestRunCycleAsyncAssignedNumber(t *testing.T) {
	m, _ := newTestMonitor(t)

	m.mu.Lock()
	m.cycle = 41
	m.mu.Unlock()

	cycle, err := m.RunCycleAsync(context.Background())
	if err != nil {
		t.Fatalf("RunCycleAsync: %v", err)
	}
	if cycle != 42 {
		t.Fatalf("cycle = %d, want 42", cycle)
	}

	waitForCycle(t, m, 42)
}

func waitForCycle(t *testing.T, m *Monitor, cycle int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r := m.LastResult(); r != nil && r.Cycle == cycle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cycle %d did not complete", cycle)
}
