// Package currency turns raw scraped price text into canonical prices in a
// configured base currency using fixed conversion rates.
package currency

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"snatcher/internal/model"
)

// ParseError reports price text with no extractable numeric value.
// Callers treat it the same as a not-found extraction.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no numeric price in %q", e.Raw)
}

var amountRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// Normalizer converts raw price strings to CanonicalPrice values.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	base  string
	rates map[string]float64
}

// NewNormalizer builds a Normalizer for the given base currency and
// currency->base conversion rates.
func NewNormalizer(base string, rates map[string]float64) *Normalizer {
	r := make(map[string]float64, len(rates))
	for k, v := range rates {
		r[strings.ToUpper(k)] = v
	}
	return &Normalizer{base: strings.ToUpper(base), rates: r}
}

// Base returns the base currency code.
func (n *Normalizer) Base() string { return n.base }

// Normalize extracts the numeric value and currency marker from raw price
// text. Text without a marker is assumed to be quoted in the base currency.
func (n *Normalizer) Normalize(raw string) (model.CanonicalPrice, error) {
	amount, ok := ExtractAmount(raw)
	if !ok {
		return model.CanonicalPrice{}, &ParseError{Raw: raw}
	}
	return n.Canonical(amount, DetectCurrency(raw, n.base)), nil
}

// Canonical converts an already-parsed amount in the given currency.
// Unknown currencies pass through unconverted.
func (n *Normalizer) Canonical(amount float64, cur string) model.CanonicalPrice {
	cur = strings.ToUpper(cur)
	if cur == "" {
		cur = n.base
	}
	base := amount
	if cur != n.base {
		if rate, ok := n.rates[cur]; ok {
			base = amount * rate
		}
	}
	return model.CanonicalPrice{Amount: amount, Currency: cur, BaseAmount: base}
}

// ExtractAmount pulls the first numeric value out of price text,
// stripping grouping commas.
func ExtractAmount(text string) (float64, bool) {
	m := amountRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DetectCurrency identifies the currency from explicit markers in the text,
// falling back to the given default when none is present.
func DetectCurrency(text, fallback string) string {
	switch {
	case strings.Contains(text, "Rs") || strings.Contains(text, "PKR"):
		return "PKR"
	case strings.Contains(text, "£") || strings.Contains(text, "GBP"):
		return "GBP"
	default:
		return strings.ToUpper(fallback)
	}
}
