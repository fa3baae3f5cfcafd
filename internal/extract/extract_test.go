package extract

import (
	"strings"
	"testing"
)

// WHAT: structured JSON-LD metadata wins over every other signal present
// in the same document.
// WHY: the chain is ordered by confidence; a page carrying both metadata
// and a visible price block must report the metadata value.
func TestExtractPrecedence(t *testing.T) {
	markup := `<html><head>
		<script type="application/ld+json">{"offers":{"price":12990,"priceCurrency":"RUB"}}</script>
	</head><body>
		<div data-widget="webPrice">99 990 ₽</div>
		<span data-price="55555"></span>
	</body></html>`

	p := New().Extract(markup)
	if p == nil {
		t.Fatal("Extract returned nil")
	}
	if p.Price != 12990 {
		t.Errorf("Price = %v, want 12990", p.Price)
	}
	if p.Source != "json-ld" {
		t.Errorf("Source = %q, want json-ld", p.Source)
	}
	if p.Currency != "RUB" {
		t.Errorf("Currency = %q, want RUB", p.Currency)
	}
}

// WHAT: JSON-LD price given as a string parses the same as a number, and
// mainEntity nesting is reported with its own source tag.
func TestExtractJSONLDVariants(t *testing.T) {
	stringPrice := `<script type="application/ld+json">{"offers":{"price":"4590.50"}}</script>`
	p := New().Extract(stringPrice)
	if p == nil || p.Price != 4590.50 {
		t.Fatalf("string price: got %+v, want 4590.50", p)
	}
	if p.Currency != "RUB" {
		t.Errorf("default currency = %q, want RUB", p.Currency)
	}

	nested := `<script type="application/ld+json">{"mainEntity":{"offers":{"price":777777}}}</script>`
	p = New().Extract(nested)
	if p == nil || p.Price != 777777 {
		t.Fatalf("mainEntity price: got %+v, want 777777", p)
	}
	if p.Source != "json-ld-main" {
		t.Errorf("Source = %q, want json-ld-main", p.Source)
	}
}

// WHAT: script bodies with key-value price fields match when no JSON-LD
// metadata exists, including the escaped-quote variant from serialized
// state blobs.
func TestExtractScriptRegex(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   float64
	}{
		{"plain key", `<script>var s = {"price": 8490};</script>`, 8490},
		{"quoted value", `<script>var s = {"finalPrice": "15990"};</script>`, 15990},
		{"escaped quotes", `<script>var s = "{\"price\":\"2390\"}";</script>`, 2390},
	}
	for _, tt := range tests {
		p := New().Extract("<html><body>" + tt.markup + "</body></html>")
		if p == nil {
			t.Errorf("%s: Extract returned nil", tt.name)
			continue
		}
		if p.Price != tt.want {
			t.Errorf("%s: Price = %v, want %v", tt.name, p.Price, tt.want)
		}
		if p.Source != "script-regex" {
			t.Errorf("%s: Source = %q, want script-regex", tt.name, p.Source)
		}
	}
}

// WHAT: visible price blocks parse despite NBSP thousands separators.
// WHY: the site renders "129 990 ₽" with U+00A0 separators; treating them
// as token boundaries would truncate the price to 129.
func TestExtractSelectorNBSP(t *testing.T) {
	markup := "<html><body><div data-widget=\"webPrice\">129 990 ₽</div></body></html>"

	p := New().Extract(markup)
	if p == nil {
		t.Fatal("Extract returned nil")
	}
	if p.Price != 129990 {
		t.Errorf("Price = %v, want 129990", p.Price)
	}
}

// WHAT: keyword-adjacent text and data-price attributes serve as the last
// fallbacks, in that order.
func TestExtractFallbacks(t *testing.T) {
	textOnly := `<html><body><p>Цена: 12 990 руб.</p></body></html>`
	p := New().Extract(textOnly)
	if p == nil || p.Price != 12990 {
		t.Fatalf("text fallback: got %+v, want 12990", p)
	}
	if p.Source != "html-regex" {
		t.Errorf("Source = %q, want html-regex", p.Source)
	}

	attrOnly := `<html><body><span data-price="3490"></span></body></html>`
	p = New().Extract(attrOnly)
	if p == nil || p.Price != 3490 {
		t.Fatalf("attribute fallback: got %+v, want 3490", p)
	}
	if p.Source != "data-attribute" {
		t.Errorf("Source = %q, want data-attribute", p.Source)
	}
}

// WHAT: implausibly small values are skipped so a later strategy can win,
// and a document with no price signal yields nil.
// WHY: ratings, quantities and phone fragments under the threshold must
// not be reported as prices.
func TestExtractPlausibility(t *testing.T) {
	skipSmall := `<html><body>
		<script type="application/ld+json">{"offers":{"price":5}}</script>
		<span data-price="18990"></span>
	</body></html>`
	p := New().Extract(skipSmall)
	if p == nil {
		t.Fatal("Extract returned nil")
	}
	if p.Price != 18990 {
		t.Errorf("Price = %v, want 18990 (small json-ld value skipped)", p.Price)
	}

	if p := New().Extract(`<html><body><h1>Товар не найден</h1></body></html>`); p != nil {
		t.Errorf("priceless page: got %+v, want nil", p)
	}
	if p := New().Extract(""); p != nil {
		t.Errorf("empty markup: got %+v, want nil", p)
	}
}

// WHAT: display formatting groups thousands with spaces and appends the
// ruble sign; values round to whole rubles.
func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{999, "999 ₽"},
		{12990, "12 990 ₽"},
		{1234567, "1 234 567 ₽"},
		{4590.50, "4 591 ₽"},
	}
	for _, tt := range tests {
		got := FormatPrice(tt.in)
		if got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}

		// Stripped of the currency suffix, a formatted whole-ruble price
		// parses back to the same value.
		v, ok := parseNumber(strings.TrimSuffix(got, " ₽"))
		if !ok {
			t.Errorf("FormatPrice(%v) = %q does not re-parse", tt.in, got)
			continue
		}
		if tt.in == float64(int64(tt.in)) && v != tt.in {
			t.Errorf("round-trip of %v = %v", tt.in, v)
		}
	}
}
