package store

import (
	"context"
	"time"

	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/record"
)

// UpsertStats records cycle statistics. Recomputing a cycle overwrites the
// stored row rather than duplicating it.
func (s *Store) UpsertStats(ctx context.Context, st record.CycleStats) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO monitoring_stats
		(cycle, total_products, successful_parses, failed_parses,
		 price_changes, increased, decreased, new_products, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cycle) DO UPDATE SET
			total_products = excluded.total_products,
			successful_parses = excluded.successful_parses,
			failed_parses = excluded.failed_parses,
			price_changes = excluded.price_changes,
			increased = excluded.increased,
			decreased = excluded.decreased,
			new_products = excluded.new_products,
			recorded_at = excluded.recorded_at`,
		st.Cycle, st.TotalProducts, st.SuccessfulParses, st.FailedParses,
		st.PriceChanges, st.Increased, st.Decreased, st.NewProducts,
		st.Timestamp.UnixMilli(),
	)
	return err
}

// MonitoringStats returns stats for the last N cycles, newest first.
func (s *Store) MonitoringStats(ctx context.Context, cycles int) ([]record.CycleStats, error) {
	if cycles <= 0 {
		cycles = 10
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT cycle, total_products, successful_parses, failed_parses,
			price_changes, increased, decreased, new_products, recorded_at
		FROM monitoring_stats
		ORDER BY cycle DESC
		LIMIT ?`, cycles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.CycleStats
	for rows.Next() {
		var st record.CycleStats
		var recordedAt int64
		if err := rows.Scan(&st.Cycle, &st.TotalProducts, &st.SuccessfulParses,
			&st.FailedParses, &st.PriceChanges, &st.Increased, &st.Decreased,
			&st.NewProducts, &recordedAt); err != nil {
			return nil, err
		}
		st.Timestamp = time.UnixMilli(recordedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

// DashboardStats is the aggregate view exposed to operators.
type DashboardStats struct {
	TotalProducts int                `json:"total_products"`
	CheckedToday  int                `json:"checked_today"`
	ChangesToday  int                `json:"changes_today"`
	LastCycle     *record.CycleStats `json:"last_cycle,omitempty"`
}

// Dashboard aggregates totals, today's activity, and the last cycle row.
func (s *Store) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var d DashboardStats

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products`).Scan(&d.TotalProducts); err != nil {
		return nil, err
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UnixMilli()

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT product_id) FROM price_history WHERE observed_at >= ?`,
		dayStart).Scan(&d.CheckedToday); err != nil {
		return nil, err
	}

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_changes
		WHERE observed_at >= ? AND change_status IN ('increased', 'decreased')`,
		dayStart).Scan(&d.ChangesToday); err != nil {
		return nil, err
	}

	last, err := s.MonitoringStats(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(last) > 0 {
		d.LastCycle = &last[0]
	}
	return &d, nil
}

// CleanupOld deletes history, change, page, and stats rows older than the
// given number of days. Returns the number of rows removed.
func (s *Store) CleanupOld(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	var total int64
	for _, q := range []string{
		`DELETE FROM price_history WHERE observed_at < ?`,
		`DELETE FROM price_changes WHERE observed_at < ?`,
		`DELETE FROM html_pages WHERE fetched_at < ?`,
		`DELETE FROM monitoring_stats WHERE recorded_at < ?`,
	} {
		res, err := dbopen.Exec(ctx, s.DB, q, cutoff)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
