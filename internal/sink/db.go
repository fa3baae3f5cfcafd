package sink

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hazyhaar/pricewatch/internal/store"
	"github.com/hazyhaar/pricewatch/record"
)

// DBSink writes cycle output to the relational store. Individual record
// failures are logged and skipped so one bad row never loses the batch.
// price_history and price_changes rows are pure inserts; re-running a
// cycle after a partial failure can duplicate them.
type DBSink struct {
	store    *store.Store
	db       *sql.DB
	saveHTML bool
	logger   *slog.Logger
}

// NewDBSink wraps an opened monitoring database. saveHTML controls whether
// raw markup is persisted alongside page metadata.
func NewDBSink(db *sql.DB, saveHTML bool, logger *slog.Logger) *DBSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBSink{store: store.New(db), db: db, saveHTML: saveHTML, logger: logger}
}

// Store exposes the underlying data access layer for queries.
func (d *DBSink) Store() *store.Store { return d.store }

func (d *DBSink) Name() string { return "db" }

func (d *DBSink) RecordPrices(ctx context.Context, prices []record.PriceObservation) error {
	var firstErr error
	for _, obs := range prices {
		if err := d.store.InsertObservation(ctx, obs); err != nil {
			d.logger.Warn("sink: insert observation", "product_id", obs.ProductID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RecordChanges persists only actual movements; the full audit trail
// including no_change lives in the file sink.
func (d *DBSink) RecordChanges(ctx context.Context, changes []record.ChangeRecord) error {
	var firstErr error
	for _, c := range changes {
		if !c.Changed() {
			continue
		}
		if err := d.store.InsertChange(ctx, c); err != nil {
			d.logger.Warn("sink: insert change", "product_id", c.ProductID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *DBSink) RecordStats(ctx context.Context, stats record.CycleStats) error {
	return d.store.UpsertStats(ctx, stats)
}

func (d *DBSink) RecordPage(ctx context.Context, page record.PageFetchResult, markup string) error {
	if !d.saveHTML {
		markup = ""
	}
	return d.store.InsertPage(ctx, page, markup)
}

func (d *DBSink) Close() error { return d.db.Close() }
