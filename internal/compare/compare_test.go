package compare

import (
	"testing"
	"time"

	"github.com/hazyhaar/pricewatch/record"
)

func obs(productID string, price float64, cycle int, ts time.Time) record.PriceObservation {
	return record.PriceObservation{
		ProductID:      productID,
		URL:            "https://www.ozon.ru/product/item-" + productID + "/",
		Cycle:          cycle,
		Price:          price,
		PriceFormatted: "formatted",
		Currency:       "RUB",
		Source:         "json-ld",
		Timestamp:      ts,
	}
}

// WHAT: a product without prior history classifies as new, with the
// no-data marker in the previous-price column.
func TestCompareNewProduct(t *testing.T) {
	now := time.Now()
	changes := Compare([]record.PriceObservation{obs("111111111", 12990, 1, now)}, nil)

	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	c := changes[0]
	if c.Status != record.ChangeNew {
		t.Errorf("Status = %q, want new", c.Status)
	}
	if c.PreviousPrice != nil {
		t.Errorf("PreviousPrice = %v, want nil", *c.PreviousPrice)
	}
	if c.PreviousFormatted != "Нет данных" {
		t.Errorf("PreviousFormatted = %q, want Нет данных", c.PreviousFormatted)
	}
	if c.ChangeAmount != nil || c.ChangePercentage != nil {
		t.Error("new product must not carry change amounts")
	}
}

// WHAT: a genuine drop classifies as decreased with signed amount,
// percentage and a significance tier.
func TestCompareDecrease(t *testing.T) {
	prevTime := time.Now().Add(-time.Hour)
	previous := []record.PriceObservation{obs("111111111", 10000, 1, prevTime)}
	current := []record.PriceObservation{obs("111111111", 9000, 2, time.Now())}

	changes := Compare(current, previous)
	c := changes[0]

	if c.Status != record.ChangeDecreased {
		t.Fatalf("Status = %q, want decreased", c.Status)
	}
	if c.ChangeAmount == nil || *c.ChangeAmount != -1000 {
		t.Errorf("ChangeAmount = %v, want -1000", c.ChangeAmount)
	}
	if c.ChangePercentage == nil || *c.ChangePercentage != -10 {
		t.Errorf("ChangePercentage = %v, want -10", c.ChangePercentage)
	}
	if c.Significance != "significant" {
		t.Errorf("Significance = %q, want significant", c.Significance)
	}
	if c.PreviousPrice == nil || *c.PreviousPrice != 10000 {
		t.Errorf("PreviousPrice = %v, want 10000", c.PreviousPrice)
	}
}

// WHAT: sub-ruble and sub-0.1% movements are dead-banded to no_change.
// Sub-ruble differences carry no amounts; an above-ruble difference keeps
// its measured amounts even when the percentage dead band applies.
// WHY: kopeck rounding and float noise on large prices would otherwise
// generate a change row every cycle.
func TestCompareDeadBands(t *testing.T) {
	now := time.Now()
	prevTime := now.Add(-time.Hour)

	tests := []struct {
		name     string
		prev     float64
		cur      float64
		want     record.ChangeStatus
		wantAmts bool
	}{
		{"identical", 12990, 12990, record.ChangeNone, false},
		{"sub-ruble up", 12990, 12990.99, record.ChangeNone, false},
		{"sub-ruble down", 12990, 12989.01, record.ChangeNone, false},
		{"just over a ruble, but under 0.1%", 500000, 500002, record.ChangeNone, true},
		{"over both thresholds", 1000, 1002, record.ChangeIncreased, true},
	}
	for _, tt := range tests {
		previous := []record.PriceObservation{obs("111111111", tt.prev, 1, prevTime)}
		current := []record.PriceObservation{obs("111111111", tt.cur, 2, now)}

		c := Compare(current, previous)[0]
		if c.Status != tt.want {
			t.Errorf("%s: Status = %q, want %q", tt.name, c.Status, tt.want)
		}
		hasAmts := c.ChangeAmount != nil && c.ChangePercentage != nil
		if hasAmts != tt.wantAmts {
			t.Errorf("%s: change amounts present = %v, want %v", tt.name, hasAmts, tt.wantAmts)
		}
	}
}

// WHAT: comparison uses the most recent prior observation, not the oldest.
// WHY: history accumulates across cycles; comparing against a stale
// observation would re-report the same change every cycle.
func TestCompareUsesLatestPrior(t *testing.T) {
	now := time.Now()
	previous := []record.PriceObservation{
		obs("111111111", 20000, 1, now.Add(-2*time.Hour)),
		obs("111111111", 15000, 2, now.Add(-time.Hour)),
		obs("222222222", 9999, 2, now.Add(-time.Hour)),
	}
	current := []record.PriceObservation{obs("111111111", 15000, 3, now)}

	c := Compare(current, previous)[0]
	if c.Status != record.ChangeNone {
		t.Fatalf("Status = %q, want no_change (compared against latest prior)", c.Status)
	}
	if c.PreviousPrice == nil || *c.PreviousPrice != 15000 {
		t.Errorf("PreviousPrice = %v, want 15000", c.PreviousPrice)
	}
}

// WHAT: every current observation yields exactly one record, and history
// for other products does not leak into the output.
func TestCompareTotality(t *testing.T) {
	now := time.Now()
	previous := []record.PriceObservation{
		obs("111111111", 1000, 1, now.Add(-time.Hour)),
		obs("333333333", 7777, 1, now.Add(-time.Hour)),
	}
	current := []record.PriceObservation{
		obs("111111111", 1200, 2, now),
		obs("222222222", 5000, 2, now),
	}

	changes := Compare(current, previous)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].Status != record.ChangeIncreased {
		t.Errorf("changes[0].Status = %q, want increased", changes[0].Status)
	}
	if changes[1].Status != record.ChangeNew {
		t.Errorf("changes[1].Status = %q, want new", changes[1].Status)
	}
}

// WHAT: significance tiers bucket by absolute percentage.
func TestSignificance(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0.5, "negligible"},
		{-0.5, "negligible"},
		{3, "small"},
		{7.5, "medium"},
		{-15, "significant"},
		{25, "very significant"},
	}
	for _, tt := range tests {
		if got := Significance(tt.pct); got != tt.want {
			t.Errorf("Significance(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
