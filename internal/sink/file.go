package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hazyhaar/pricewatch/record"
)

// FileSink persists the observation history as a single JSON document,
// rewritten wholesale on each save: old entries are always carried forward,
// so the data model stays append-only even though the storage format is
// not. Change records additionally go to an append-only CSV audit file.
type FileSink struct {
	mu          sync.Mutex
	historyPath string
	changesPath string
	logger      *slog.Logger

	doc historyDoc
}

type historyDoc struct {
	History    []record.PriceObservation `json:"history"`
	LastCycle  int                       `json:"last_cycle"`
	LastUpdate string                    `json:"last_update"`
	LastStats  *record.CycleStats        `json:"last_stats,omitempty"`
}

// NewFileSink loads (or starts) the history document at historyPath.
// A corrupt file starts the history over rather than failing startup.
func NewFileSink(historyPath, changesPath string, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileSink{
		historyPath: historyPath,
		changesPath: changesPath,
		logger:      logger,
	}

	data, err := os.ReadFile(historyPath)
	if err == nil {
		if err := json.Unmarshal(data, &fs.doc); err != nil {
			logger.Warn("sink: history file unreadable, starting fresh", "path", historyPath, "error", err)
			fs.doc = historyDoc{}
		}
	}
	return fs
}

func (f *FileSink) Name() string { return "file" }

// RecordPrices appends the batch to the carried-forward history and
// rewrites the document.
func (f *FileSink) RecordPrices(_ context.Context, prices []record.PriceObservation) error {
	if len(prices) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.doc.History = append(f.doc.History, prices...)
	f.doc.LastCycle = prices[0].Cycle
	f.doc.LastUpdate = time.Now().Format(time.RFC3339)
	return f.saveLocked()
}

// RecordChanges appends every record, no_change included, to the CSV
// audit trail.
func (f *FileSink) RecordChanges(_ context.Context, changes []record.ChangeRecord) error {
	if len(changes) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, statErr := os.Stat(f.changesPath)
	newFile := os.IsNotExist(statErr)

	file, err := os.OpenFile(f.changesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", f.changesPath, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = ';'

	if newFile {
		if err := w.Write([]string{
			"timestamp", "cycle", "product_id", "product_index",
			"current_price", "previous_price", "change_amount",
			"change_percentage", "change_status", "significance", "url",
		}); err != nil {
			return fmt.Errorf("sink: write csv header: %w", err)
		}
	}

	for _, c := range changes {
		row := []string{
			c.Timestamp.Format("2006-01-02 15:04:05"),
			strconv.Itoa(c.Cycle),
			c.ProductID,
			strconv.Itoa(c.Index),
			strconv.FormatFloat(c.CurrentPrice, 'f', 2, 64),
			floatField(c.PreviousPrice),
			floatField(c.ChangeAmount),
			floatField(c.ChangePercentage),
			string(c.Status),
			c.Significance,
			c.URL,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("sink: write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// RecordStats stores the latest cycle stats in the document metadata.
func (f *FileSink) RecordStats(_ context.Context, stats record.CycleStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.doc.LastCycle = stats.Cycle
	f.doc.LastUpdate = time.Now().Format(time.RFC3339)
	f.doc.LastStats = &stats
	return f.saveLocked()
}

// RecordPage is a no-op: raw markup files are written by the orchestrator.
func (f *FileSink) RecordPage(context.Context, record.PageFetchResult, string) error {
	return nil
}

func (f *FileSink) Close() error { return nil }

// History returns a copy of the full observation history.
func (f *FileSink) History() []record.PriceObservation {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]record.PriceObservation, len(f.doc.History))
	copy(out, f.doc.History)
	return out
}

// ProductHistory returns all observations for one product, oldest first.
func (f *FileSink) ProductHistory(productID string) []record.PriceObservation {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []record.PriceObservation
	for _, obs := range f.doc.History {
		if obs.ProductID == productID {
			out = append(out, obs)
		}
	}
	return out
}

// Recent returns the last n observations.
func (f *FileSink) Recent(n int) []record.PriceObservation {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n <= 0 || n > len(f.doc.History) {
		n = len(f.doc.History)
	}
	out := make([]record.PriceObservation, n)
	copy(out, f.doc.History[len(f.doc.History)-n:])
	return out
}

// LastCycle returns the cycle number of the most recent save.
func (f *FileSink) LastCycle() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.LastCycle
}

// saveLocked rewrites the history document atomically.
func (f *FileSink) saveLocked() error {
	data, err := json.MarshalIndent(&f.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("sink: marshal history: %w", err)
	}

	tmp := f.historyPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.historyPath); err != nil {
		return fmt.Errorf("sink: rename: %w", err)
	}
	return nil
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
