package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultCurrency = "RUB"

// jsonLDStrategy reads structured product metadata from
// script[type="application/ld+json"] blocks: offers.price directly, or
// nested under mainEntity. Highest confidence.
type jsonLDStrategy struct{}

func (jsonLDStrategy) Name() string { return "json-ld" }

// ldPrice accepts a JSON number or a numeric string; product metadata in
// the wild uses both.
type ldPrice string

func (p *ldPrice) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*p = ldPrice(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ldPrice(s)
	return nil
}

type ldOffers struct {
	Price         ldPrice `json:"price"`
	PriceCurrency string  `json:"priceCurrency"`
}

type ldDocument struct {
	Offers     *ldOffers `json:"offers"`
	MainEntity *struct {
		Offers *ldOffers `json:"offers"`
	} `json:"mainEntity"`
}

func (jsonLDStrategy) TryExtract(doc *goquery.Document) (*Price, bool) {
	var found *Price

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var ld ldDocument
		if err := json.Unmarshal([]byte(sel.Text()), &ld); err != nil {
			return true
		}

		if p, ok := offerPrice(ld.Offers, "json-ld"); ok {
			found = p
			return false
		}
		if ld.MainEntity != nil {
			if p, ok := offerPrice(ld.MainEntity.Offers, "json-ld-main"); ok {
				found = p
				return false
			}
		}
		return true
	})

	return found, found != nil
}

func offerPrice(offers *ldOffers, source string) (*Price, bool) {
	if offers == nil || offers.Price == "" {
		return nil, false
	}
	v, ok := parseNumber(string(offers.Price))
	if !ok || !plausible(v) {
		return nil, false
	}
	currency := offers.PriceCurrency
	if currency == "" {
		currency = defaultCurrency
	}
	return &Price{Price: v, Formatted: FormatPrice(v), Currency: currency, Source: source}, true
}

// scriptRegexStrategy searches the remaining script bodies for
// key-value-shaped price fields, including escaped-quote variants and a
// loosely-matched currentPrice fallback.
type scriptRegexStrategy struct{}

func (scriptRegexStrategy) Name() string { return "script-regex" }

var scriptPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"price"\s*:\s*["']?(\d+(?:\.\d+)?)["']?`),
	regexp.MustCompile(`(?i)"finalPrice"\s*:\s*["']?(\d+(?:\.\d+)?)["']?`),
	regexp.MustCompile(`(?i)"value"\s*:\s*["']?(\d+(?:\.\d+)?)["']?\s*,\s*"currency"`),
	regexp.MustCompile(`(?i)\\"price\\"\s*:\s*\\"(\d+(?:\.\d+)?)\\"`),
	regexp.MustCompile(`(?i)currentPrice.*?(\d+(?:\.\d+)?)`),
}

func (scriptRegexStrategy) TryExtract(doc *goquery.Document) (*Price, bool) {
	var found *Price

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if text == "" {
			return true
		}
		for _, pattern := range scriptPricePatterns {
			m := pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			v, ok := parseNumber(m[1])
			if !ok || !plausible(v) {
				continue
			}
			found = &Price{Price: v, Formatted: FormatPrice(v), Currency: defaultCurrency, Source: "script-regex"}
			return false
		}
		return true
	})

	return found, found != nil
}

// selectorStrategy scans a fixed list of selectors known to house the
// visible price on the target page layout family.
type selectorStrategy struct{}

func (selectorStrategy) Name() string { return "selector" }

var priceSelectors = []string{
	`[data-widget="webPrice"]`,
	`.ui-p9`,
	`.q9k1`,
	`.l9k1`,
	`.s9k1`,
	`.ui-q1`,
	`[class*="price"]`,
	`[class*="Price"]`,
	`span[data-widget="webPrice"]`,
	`div[data-widget="webPrice"]`,
}

// currencySuffixed matches a separator-grouped number immediately followed
// by a ruble marker. \s alone misses U+00A0, which the site uses as the
// thousands separator.
var currencySuffixed = regexp.MustCompile(`(?i)(\d[\d\s\x{00a0}]*)[\s\x{00a0}]*[₽ррубRUB]`)

func (selectorStrategy) TryExtract(doc *goquery.Document) (*Price, bool) {
	for _, selector := range priceSelectors {
		var found *Price

		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			m := currencySuffixed.FindStringSubmatch(text)
			if m == nil {
				return true
			}
			v, ok := parseNumber(m[1])
			if !ok || !plausible(v) {
				return true
			}
			source := "selector: " + selector
			if len(source) > 40 {
				source = source[:40]
			}
			found = &Price{Price: v, Formatted: FormatPrice(v), Currency: defaultCurrency, Source: source}
			return false
		})

		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// textRegexStrategy searches the full rendered text for currency- or
// keyword-adjacent numbers. Low confidence; used only when the structured
// strategies miss.
type textRegexStrategy struct{}

func (textRegexStrategy) Name() string { return "html-regex" }

var textPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d[\d\s\x{00a0}]{3,})[\s\x{00a0}]*₽`),
	regexp.MustCompile(`(?i)цена\D*(\d[\d\s\x{00a0}]*)`),
	regexp.MustCompile(`(?i)стоимость\D*(\d[\d\s\x{00a0}]*)`),
	regexp.MustCompile(`(?i)(\d+)[\s\x{00a0}]*рубл`),
	regexp.MustCompile(`(?i)руб\D*(\d[\d\s\x{00a0}]*)`),
}

func (textRegexStrategy) TryExtract(doc *goquery.Document) (*Price, bool) {
	text := doc.Text()

	for _, pattern := range textPricePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := parseNumber(m[1])
		if !ok || !plausible(v) {
			continue
		}
		return &Price{Price: v, Formatted: FormatPrice(v), Currency: defaultCurrency, Source: "html-regex"}, true
	}
	return nil, false
}

// dataAttrStrategy scans data-price attributes across all elements.
// Last resort.
type dataAttrStrategy struct{}

func (dataAttrStrategy) Name() string { return "data-attribute" }

func (dataAttrStrategy) TryExtract(doc *goquery.Document) (*Price, bool) {
	var found *Price

	doc.Find("[data-price]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw, ok := sel.Attr("data-price")
		if !ok {
			return true
		}
		v, ok := parseNumber(raw)
		if !ok || !plausible(v) {
			return true
		}
		found = &Price{Price: v, Formatted: FormatPrice(v), Currency: defaultCurrency, Source: "data-attribute"}
		return false
	})

	return found, found != nil
}
