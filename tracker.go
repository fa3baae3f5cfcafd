package pricewatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/pricewatch/record"
)

// Tracker holds the ordered set of monitored product URLs, persisted as a
// JSON document. Uniqueness of the derived product ID is an invariant:
// adding a normalized duplicate is rejected.
type Tracker struct {
	mu     sync.Mutex
	path   string
	pages  []string
	logger *slog.Logger
}

type pagesFile struct {
	Pages       []string `json:"pages"`
	LastUpdated string   `json:"last_updated"`
	TotalPages  int      `json:"total_pages"`
}

// NewTracker loads the tracked set from path, starting empty when the file
// does not exist yet.
func NewTracker(path string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: read %s: %w", path, err)
	}

	var pf pagesFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("tracker: parse %s: %w", path, err)
	}
	t.pages = pf.Pages
	return t, nil
}

// Add normalizes and validates url, then appends it to the tracked set.
// Returns false without error when the normalized URL is already tracked.
func (t *Tracker) Add(url string) (bool, error) {
	normalized, err := NormalizeProductURL(url)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pages {
		if p == normalized {
			return false, nil
		}
	}

	t.pages = append(t.pages, normalized)
	if err := t.saveLocked(); err != nil {
		return false, err
	}
	t.logger.Info("tracker: product added", "url", normalized, "product_id", ProductID(normalized))
	return true, nil
}

// Remove deletes a tracked URL (given in raw or normalized form).
// Returns false when the URL was not tracked.
func (t *Tracker) Remove(url string) (bool, error) {
	normalized, err := NormalizeProductURL(url)
	if err != nil {
		normalized = url
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.pages {
		if p == normalized {
			t.pages = append(t.pages[:i], t.pages[i+1:]...)
			if err := t.saveLocked(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// RemoveByID deletes the tracked URL whose derived product ID matches id.
func (t *Tracker) RemoveByID(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.pages {
		if ProductID(p) == id {
			t.pages = append(t.pages[:i], t.pages[i+1:]...)
			if err := t.saveLocked(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Products returns the tracked set in order, with derived product IDs.
func (t *Tracker) Products() []record.TrackedProduct {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]record.TrackedProduct, 0, len(t.pages))
	for _, p := range t.pages {
		out = append(out, record.TrackedProduct{ProductID: ProductID(p), URL: p})
	}
	return out
}

// Count returns the number of tracked products.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pages)
}

func (t *Tracker) saveLocked() error {
	pf := pagesFile{
		Pages:       t.pages,
		LastUpdated: time.Now().Format(time.RFC3339),
		TotalPages:  len(t.pages),
	}
	data, err := json.MarshalIndent(&pf, "", "  ")
	if err != nil {
		return fmt.Errorf("tracker: marshal: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("tracker: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("tracker: rename: %w", err)
	}
	return nil
}
