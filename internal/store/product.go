package store

import (
	"context"
	"time"

	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/record"
)

// ProductSummary is a product row joined with its latest observation.
type ProductSummary struct {
	ProductID     string  `json:"product_id"`
	URL           string  `json:"url"`
	Name          string  `json:"name"`
	LastPrice     float64 `json:"last_price"`
	LastFormatted string  `json:"last_price_formatted"`
	LastCheck     int64   `json:"last_check"`
}

// UpsertProduct inserts product metadata or refreshes it when the product
// is already known.
func (s *Store) UpsertProduct(ctx context.Context, p record.TrackedProduct) error {
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO products (product_id, url, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			url = excluded.url,
			updated_at = excluded.updated_at`,
		p.ProductID, p.URL, "product "+p.ProductID, now, now,
	)
	return err
}

// AllProducts lists every known product with its most recent price.
func (s *Store) AllProducts(ctx context.Context) ([]ProductSummary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT p.product_id, p.url, p.name,
			COALESCE((SELECT price FROM price_history
				WHERE product_id = p.product_id
				ORDER BY observed_at DESC LIMIT 1), 0),
			COALESCE((SELECT price_formatted FROM price_history
				WHERE product_id = p.product_id
				ORDER BY observed_at DESC LIMIT 1), ''),
			COALESCE((SELECT observed_at FROM price_history
				WHERE product_id = p.product_id
				ORDER BY observed_at DESC LIMIT 1), 0)
		FROM products p
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductSummary
	for rows.Next() {
		var ps ProductSummary
		if err := rows.Scan(&ps.ProductID, &ps.URL, &ps.Name,
			&ps.LastPrice, &ps.LastFormatted, &ps.LastCheck); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
