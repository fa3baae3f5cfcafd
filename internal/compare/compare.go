// Package compare detects and classifies price changes between monitoring
// cycles. Every comparison produces exactly one ChangeRecord, no_change
// included: the output is an append-only audit trail, not an alert feed.
package compare

import (
	"math"

	"github.com/hazyhaar/pricewatch/record"
)

const (
	// amountThreshold is the currency-unit dead band: differences of one
	// ruble or less never count as a change.
	amountThreshold = 0.99
	// percentThreshold guards against float noise on large prices: an
	// above-band amount still classifies as no_change below 0.1%.
	percentThreshold = 0.1

	noHistory = "Нет данных"
)

// Compare classifies each current observation against the most recent
// prior observation for the same product. With no prior observation the
// product is new; otherwise the record carries the signed amount,
// percentage, and a significance tier.
func Compare(current, previous []record.PriceObservation) []record.ChangeRecord {
	changes := make([]record.ChangeRecord, 0, len(current))
	for _, cur := range current {
		prev := latestFor(cur.ProductID, previous)
		changes = append(changes, classify(cur, prev))
	}
	return changes
}

// latestFor returns the most recent prior observation for productID by
// timestamp, ties broken by latest position in the list.
func latestFor(productID string, previous []record.PriceObservation) *record.PriceObservation {
	var best *record.PriceObservation
	for i := range previous {
		p := &previous[i]
		if p.ProductID != productID {
			continue
		}
		if best == nil || !p.Timestamp.Before(best.Timestamp) {
			best = p
		}
	}
	return best
}

func classify(cur record.PriceObservation, prev *record.PriceObservation) record.ChangeRecord {
	rec := record.ChangeRecord{
		ProductID:         cur.ProductID,
		URL:               cur.URL,
		Cycle:             cur.Cycle,
		Index:             cur.Index,
		CurrentPrice:      cur.Price,
		CurrentFormatted:  cur.PriceFormatted,
		PreviousFormatted: noHistory,
		Status:            record.ChangeNew,
		Source:            cur.Source,
		Timestamp:         cur.Timestamp,
	}

	if prev == nil {
		return rec
	}

	prevPrice := prev.Price
	rec.PreviousPrice = &prevPrice
	rec.PreviousFormatted = prev.PriceFormatted
	rec.Status = record.ChangeNone

	diff := cur.Price - prevPrice
	if math.Abs(diff) <= amountThreshold {
		return rec
	}

	pct := diff / prevPrice * 100
	rec.ChangeAmount = &diff
	rec.ChangePercentage = &pct

	// Below 0.1% the movement is noise on a large price: the status stays
	// no_change but the measured amounts remain on the record.
	if math.Abs(pct) < percentThreshold {
		return rec
	}

	if diff > 0 {
		rec.Status = record.ChangeIncreased
	} else {
		rec.Status = record.ChangeDecreased
	}
	rec.Significance = Significance(pct)
	return rec
}

// Significance buckets a percentage change into a coarse magnitude tier.
func Significance(pct float64) string {
	switch abs := math.Abs(pct); {
	case abs < 1:
		return "negligible"
	case abs < 5:
		return "small"
	case abs < 10:
		return "medium"
	case abs < 20:
		return "significant"
	default:
		return "very significant"
	}
}
