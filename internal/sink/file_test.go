package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/pricewatch/record"
)

func newTestFileSink(t *testing.T) (*FileSink, string, string) {
	t.Helper()
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "price_history.json")
	changesPath := filepath.Join(dir, "price_changes.csv")
	return NewFileSink(historyPath, changesPath, nil), historyPath, changesPath
}

func fileObs(productID string, price float64, cycle int) record.PriceObservation {
	return record.PriceObservation{
		ProductID:      productID,
		URL:            "https://www.ozon.ru/product/item-" + productID + "/",
		Cycle:          cycle,
		Price:          price,
		PriceFormatted: "formatted",
		Currency:       "RUB",
		Source:         "json-ld",
		Timestamp:      time.Now(),
	}
}

// WHAT: history accumulates across saves and survives a reload, including
// the cycle counter.
// WHY: the monitor resumes cycle numbering from the file after a restart;
// losing it would restart comparisons from "new product".
func TestFileSinkHistoryRoundTrip(t *testing.T) {
	fs, historyPath, changesPath := newTestFileSink(t)
	ctx := context.Background()

	if err := fs.RecordPrices(ctx, []record.PriceObservation{
		fileObs("111111111", 10000, 1),
		fileObs("222222222", 5000, 1),
	}); err != nil {
		t.Fatalf("RecordPrices cycle 1: %v", err)
	}
	if err := fs.RecordPrices(ctx, []record.PriceObservation{
		fileObs("111111111", 9000, 2),
	}); err != nil {
		t.Fatalf("RecordPrices cycle 2: %v", err)
	}

	reloaded := NewFileSink(historyPath, changesPath, nil)
	if got := len(reloaded.History()); got != 3 {
		t.Fatalf("reloaded history len = %d, want 3", got)
	}
	if reloaded.LastCycle() != 2 {
		t.Errorf("LastCycle = %d, want 2", reloaded.LastCycle())
	}

	product := reloaded.ProductHistory("111111111")
	if len(product) != 2 {
		t.Fatalf("ProductHistory len = %d, want 2", len(product))
	}
	if product[0].Price != 10000 || product[1].Price != 9000 {
		t.Errorf("ProductHistory prices = %v, %v, want oldest first", product[0].Price, product[1].Price)
	}
}

// WHAT: a corrupt history file starts the sink fresh instead of failing.
func TestFileSinkCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "price_history.json")
	if err := os.WriteFile(historyPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSink(historyPath, filepath.Join(dir, "changes.csv"), nil)
	if got := len(fs.History()); got != 0 {
		t.Fatalf("history len = %d, want 0 after corrupt load", got)
	}
	if err := fs.RecordPrices(context.Background(), []record.PriceObservation{
		fileObs("111111111", 10000, 1),
	}); err != nil {
		t.Fatalf("RecordPrices after corrupt load: %v", err)
	}
}

// WHAT: the CSV audit file gets a header once, then one semicolon-separated
// row per change record, no_change rows included.
func TestFileSinkChangesCSV(t *testing.T) {
	fs, _, changesPath := newTestFileSink(t)
	ctx := context.Background()

	prev, amount, pct := 10000.0, -1000.0, -10.0
	batch1 := []record.ChangeRecord{
		{ProductID: "111111111", URL: "https://www.ozon.ru/product/item-111111111/",
			Cycle: 2, Index: 1, CurrentPrice: 9000,
			PreviousPrice: &prev, ChangeAmount: &amount, ChangePercentage: &pct,
			Status: record.ChangeDecreased, Significance: "significant",
			Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)},
		{ProductID: "222222222", Cycle: 2, Index: 2, CurrentPrice: 5000,
			PreviousPrice: &prev, Status: record.ChangeNone,
			Timestamp: time.Date(2026, 8, 30, 12, 0, 5, 0, time.UTC)},
	}
	if err := fs.RecordChanges(ctx, batch1); err != nil {
		t.Fatalf("RecordChanges: %v", err)
	}
	if err := fs.RecordChanges(ctx, batch1[:1]); err != nil {
		t.Fatalf("RecordChanges append: %v", err)
	}

	file, err := os.Open(changesPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = ';'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want 4 (header + 3 records)", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][8] != "change_status" {
		t.Errorf("header = %v", rows[0])
	}

	got := rows[1]
	if got[0] != "2026-08-30 12:00:00" {
		t.Errorf("timestamp = %q", got[0])
	}
	if got[4] != "9000.00" || got[5] != "10000.00" || got[6] != "-1000.00" {
		t.Errorf("price columns = %v", got[2:7])
	}
	if got[8] != "decreased" || got[9] != "significant" {
		t.Errorf("status columns = %q, %q", got[8], got[9])
	}

	// no_change rows carry empty amount fields, not zeros.
	if rows[2][6] != "" || rows[2][7] != "" {
		t.Errorf("no_change amounts = %q, %q, want empty", rows[2][6], rows[2][7])
	}
	if rows[2][8] != "no_change" {
		t.Errorf("no_change status = %q", rows[2][8])
	}
}

// WHAT: Recent returns the tail of the history without mutating it.
func TestFileSinkRecent(t *testing.T) {
	fs, _, _ := newTestFileSink(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		fs.RecordPrices(ctx, []record.PriceObservation{fileObs("111111111", float64(1000*i), i)})
	}

	recent := fs.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) len = %d", len(recent))
	}
	if recent[0].Price != 4000 || recent[1].Price != 5000 {
		t.Errorf("Recent(2) prices = %v, %v", recent[0].Price, recent[1].Price)
	}
	if got := fs.Recent(100); len(got) != 5 {
		t.Errorf("Recent(100) len = %d, want 5", len(got))
	}
}

// WHAT: the history file on disk is valid indented JSON with the expected
// top-level fields.
func TestFileSinkDocumentShape(t *testing.T) {
	fs, historyPath, _ := newTestFileSink(t)
	fs.RecordPrices(context.Background(), []record.PriceObservation{fileObs("111111111", 10000, 1)})

	data, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, field := range []string{`"history"`, `"last_cycle"`, `"last_update"`, `"product_id"`} {
		if !strings.Contains(text, field) {
			t.Errorf("history document missing %s", field)
		}
	}
}
