package pricewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/pricewatch/record"
)

// WHAT: only markup snapshots past the cutoff are deleted; other files in
// the directory are never touched.
func TestCleanupPages(t *testing.T) {
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "product_111111111_20260101_120000_cycle1.html")
	newFile := filepath.Join(dir, "product_222222222_20260830_120000_cycle9.html")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, f := range []string{oldFile, newFile, unrelated} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	past := time.Now().AddDate(0, 0, -60)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(unrelated, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := cleanupPages(dir, 30)
	if err != nil {
		t.Fatalf("cleanupPages: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old snapshot still present")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("recent snapshot deleted")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file deleted")
	}
}

// WHAT: the weekly database cleanup prunes rows past the retention window
// while recent rows survive.
func TestCleanupDB(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.SaveHTML = false
	cfg.DB.Path = filepath.Join(cfg.DataDir, "monitor.db")
	cfg.AutoCleanupDays = 30

	m, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	st := m.Store()
	if st == nil {
		t.Fatal("store not configured")
	}

	ctx := context.Background()
	mk := func(ts time.Time, cycle int) record.PriceObservation {
		return record.PriceObservation{
			ProductID:      "111111111",
			URL:            "https://www.ozon.ru/product/item-111111111/",
			Cycle:          cycle,
			Price:          12990,
			PriceFormatted: "12 990 ₽",
			Currency:       "RUB",
			Source:         "json-ld",
			Timestamp:      ts,
		}
	}
	if err := st.InsertObservation(ctx, mk(time.Now().AddDate(0, 0, -60), 1)); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertObservation(ctx, mk(time.Now(), 2)); err != nil {
		t.Fatal(err)
	}

	m.CleanupDB(ctx)

	hist, err := st.PriceHistory(ctx, "111111111", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Cycle != 2 {
		t.Fatalf("history after cleanup = %+v, want only cycle 2", hist)
	}
}
