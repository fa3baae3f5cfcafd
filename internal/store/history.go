package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/record"
)

// Writes go through dbopen.Exec: the API and the cycle share one SQLite
// file, so a reader holding the lock must not fail an insert outright.

// InsertObservation appends one price observation to the history table.
// The owning product row is upserted first so the history never dangles.
func (s *Store) InsertObservation(ctx context.Context, obs record.PriceObservation) error {
	if err := s.UpsertProduct(ctx, record.TrackedProduct{ProductID: obs.ProductID, URL: obs.URL}); err != nil {
		return err
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO price_history (product_id, price, price_formatted, currency, source, cycle, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.ProductID, obs.Price, obs.PriceFormatted, obs.Currency, obs.Source,
		obs.Cycle, obs.Timestamp.UnixMilli(),
	)
	return err
}

// PriceHistory returns the most recent observations for a product,
// newest first.
func (s *Store) PriceHistory(ctx context.Context, productID string, limit int) ([]record.PriceObservation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT product_id, price, price_formatted, currency, source, cycle, observed_at
		FROM price_history
		WHERE product_id = ?
		ORDER BY observed_at DESC
		LIMIT ?`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.PriceObservation
	for rows.Next() {
		var obs record.PriceObservation
		var observedAt int64
		if err := rows.Scan(&obs.ProductID, &obs.Price, &obs.PriceFormatted,
			&obs.Currency, &obs.Source, &obs.Cycle, &observedAt); err != nil {
			return nil, err
		}
		obs.Timestamp = time.UnixMilli(observedAt)
		out = append(out, obs)
	}
	return out, rows.Err()
}

// InsertChange appends one price change row.
func (s *Store) InsertChange(ctx context.Context, c record.ChangeRecord) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO price_changes
		(product_id, current_price, previous_price, change_amount, change_percentage,
		 change_status, significance, cycle, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProductID, c.CurrentPrice, nullFloat(c.PreviousPrice),
		nullFloat(c.ChangeAmount), nullFloat(c.ChangePercentage),
		string(c.Status), c.Significance, c.Cycle, c.Timestamp.UnixMilli(),
	)
	return err
}

// RecentChanges returns increased/decreased records from the last N days,
// newest first.
func (s *Store) RecentChanges(ctx context.Context, days int) ([]record.ChangeRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	rows, err := s.DB.QueryContext(ctx,
		`SELECT pc.product_id, COALESCE(p.url, ''), pc.current_price, pc.previous_price,
			pc.change_amount, pc.change_percentage, pc.change_status, pc.significance,
			pc.cycle, pc.observed_at
		FROM price_changes pc
		LEFT JOIN products p ON pc.product_id = p.product_id
		WHERE pc.observed_at >= ?
		AND pc.change_status IN ('increased', 'decreased')
		ORDER BY pc.observed_at DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.ChangeRecord
	for rows.Next() {
		var c record.ChangeRecord
		var prev, amount, pct sql.NullFloat64
		var observedAt int64
		var status string
		if err := rows.Scan(&c.ProductID, &c.URL, &c.CurrentPrice, &prev,
			&amount, &pct, &status, &c.Significance, &c.Cycle, &observedAt); err != nil {
			return nil, err
		}
		c.Status = record.ChangeStatus(status)
		c.Timestamp = time.UnixMilli(observedAt)
		if prev.Valid {
			c.PreviousPrice = &prev.Float64
		}
		if amount.Valid {
			c.ChangeAmount = &amount.Float64
		}
		if pct.Valid {
			c.ChangePercentage = &pct.Float64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertPage records one fetched page; markup may be empty when raw HTML
// persistence is disabled.
func (s *Store) InsertPage(ctx context.Context, page record.PageFetchResult, markup string) error {
	if err := s.UpsertProduct(ctx, record.TrackedProduct{ProductID: page.ProductID, URL: page.URL}); err != nil {
		return err
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO html_pages (product_id, filename, markup, content_length, status_code, cycle, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		page.ProductID, page.MarkupFile, markup, page.ContentLength,
		page.StatusCode, page.Cycle, page.Timestamp.UnixMilli(),
	)
	return err
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
