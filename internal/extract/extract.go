// Package extract pulls a price signal out of heterogeneous product page
// markup. Strategies are tried in strict confidence order; the first one
// producing a plausible price wins and tags the result with its name.
// All strategies failing is an expected outcome, not an error.
package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Price is the extracted fragment of a price observation.
type Price struct {
	Price     float64
	Formatted string
	Currency  string
	Source    string
}

// minPlausible rejects footer totals, phone numbers, and rating counts
// mistaken for prices.
const minPlausible = 10

// Strategy is one independent extraction heuristic.
type Strategy interface {
	Name() string
	TryExtract(doc *goquery.Document) (*Price, bool)
}

// Extractor runs an ordered strategy chain over markup.
type Extractor struct {
	strategies []Strategy
}

// New creates an Extractor with the default chain: structured JSON-LD
// metadata, script-body patterns, known price selectors, full-text
// patterns, and data-price attributes, in that order.
func New() *Extractor {
	return &Extractor{
		strategies: []Strategy{
			jsonLDStrategy{},
			scriptRegexStrategy{},
			selectorStrategy{},
			textRegexStrategy{},
			dataAttrStrategy{},
		},
	}
}

// Extract parses markup and returns the first plausible price, or nil when
// no strategy matches.
func (e *Extractor) Extract(markup string) *Price {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	for _, s := range e.strategies {
		if p, ok := s.TryExtract(doc); ok {
			return p
		}
	}
	return nil
}

// parseNumber strips whitespace and non-breaking-space separators and
// parses the remainder as a decimal number.
func parseNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', '\t':
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// plausible filters obviously-wrong matches.
func plausible(v float64) bool {
	return v > minPlausible
}

// FormatPrice renders a price as a thousands-grouped integer with the
// ruble suffix, for display only. The numeric value is never rounded for
// comparison.
func FormatPrice(v float64) string {
	n := int64(v + 0.5)
	if v < 0 {
		n = int64(v - 0.5)
	}

	digits := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}

	out := b.String()
	if neg {
		out = "-" + out
	}
	return out + " ₽"
}
