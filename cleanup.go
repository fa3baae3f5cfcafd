package pricewatch

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// CleanupPages removes saved page snapshots older than the configured
// retention. It is a no-op when AutoCleanupDays is zero.
func (m *Monitor) CleanupPages(ctx context.Context) {
	days := m.cfg.AutoCleanupDays
	if days <= 0 {
		return
	}
	removed, err := cleanupPages(m.cfg.PagesDir(), days)
	if err != nil {
		m.logger.Warn("pricewatch: pages cleanup", "error", err)
	} else if removed > 0 {
		m.logger.Info("pricewatch: pages cleanup", "files", removed, "days", days)
	}
}

// CleanupDB prunes database rows past the configured retention, falling
// back to 30 days when none is set. No-op when running file-only.
func (m *Monitor) CleanupDB(ctx context.Context) {
	st := m.Store()
	if st == nil {
		return
	}
	removed, err := st.CleanupOld(ctx, m.cfg.AutoCleanupDays)
	if err != nil {
		m.logger.Warn("pricewatch: db cleanup", "error", err)
	} else if removed > 0 {
		m.logger.Info("pricewatch: db cleanup", "rows", removed)
	}
}

// cleanupPages deletes saved markup files whose modification time is older
// than the cutoff and returns how many were removed.
func cleanupPages(dir string, days int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "product_*.html"))
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
