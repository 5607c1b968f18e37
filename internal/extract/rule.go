// Package extract pulls ranked price candidates out of rendered provider
// pages using per-provider rules described as data.
package extract

import (
	"net/url"
	"strings"
)

// Shape selects how surviving candidates are ranked.
type Shape int

const (
	// ShapeTiered ranks by tier, then distance from the anchor, then page
	// order.
	ShapeTiered Shape = iota
	// ShapeTotalPrice returns the largest surviving amount; on booking
	// summaries the total is usually the biggest figure on the page.
	ShapeTotalPrice
	// ShapeLowestPrice returns the smallest surviving amount; used for
	// flight result listings where the cheapest fare is the offer price.
	ShapeLowestPrice
)

// Pattern is one ordered query against the page structure.
type Pattern struct {
	Selector string
	Tier     int
}

// Range bounds plausible amounts for one currency.
type Range struct {
	Min, Max float64
}

// Band assigns a trust tier by amount. First matching band wins; amounts
// matching no band are discarded when bands are configured.
type Band struct {
	Min, Max float64
	Tier     int
}

// Rule is the static per-provider extraction configuration. Rules are
// immutable and shared by all tasks without synchronization.
type Rule struct {
	Name     string
	Domains  []string
	Patterns []Pattern
	Ranges   map[string]Range
	Anchor   float64
	Bands    []Band
	Shape    Shape
	Currency string // quote currency assumed when the text has no marker
}

// plausible reports whether amount is in the rule's range for the currency.
// Currencies without a configured range are rejected.
func (r Rule) plausible(amount float64, cur string) bool {
	rng, ok := r.Ranges[cur]
	if !ok {
		return false
	}
	return amount >= rng.Min && amount <= rng.Max
}

// tierFor resolves the candidate's tier: band tier when bands are
// configured, otherwise the pattern tier. ok is false when bands are
// configured and none match.
func (r Rule) tierFor(amount float64, patternTier int) (int, bool) {
	if len(r.Bands) == 0 {
		return patternTier, true
	}
	for _, b := range r.Bands {
		if amount >= b.Min && amount <= b.Max {
			return b.Tier, true
		}
	}
	return 0, false
}

// Registry maps URL domains to extraction rules.
type Registry struct {
	rules   []Rule
	generic Rule
}

// NewRegistry builds the registry with the built-in provider rules.
func NewRegistry() *Registry {
	return &Registry{rules: providerRules, generic: genericRule}
}

// Lookup selects the rule whose domain matches the URL's host, falling
// back to the generic rule.
func (r *Registry) Lookup(rawURL string) Rule {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.generic
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, rule := range r.rules {
		for _, d := range rule.Domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return rule
			}
		}
	}
	return r.generic
}

// Generic returns the fallback rule.
func (r *Registry) Generic() Rule { return r.generic }

var gbpHoliday = map[string]Range{"GBP": {Min: 100, Max: 50000}}

var genericRule = Rule{
	Name:  "generic",
	Shape: ShapeTotalPrice,
	Ranges: map[string]Range{
		"GBP": {Min: 50, Max: 50000},
		"PKR": {Min: 10000, Max: 2000000},
	},
	Patterns: []Pattern{
		{Selector: `[data-testid='price']`, Tier: 0},
		{Selector: `[class*='total-price'], [class*='price-summary']`, Tier: 0},
		{Selector: `[class*='price']`, Tier: 1},
	},
}

// providerRules carry the selector lists, plausible ranges and anchors the
// providers are known to need. Order matters only within a rule.
var providerRules = []Rule{
	{
		Name:    "loveholidays",
		Domains: []string{"loveholidays.com"},
		Shape:   ShapeTiered,
		Anchor:  1498,
		Ranges:  map[string]Range{"GBP": {Min: 1000, Max: 2000}},
		Bands: []Band{
			{Min: 1495, Max: 1501, Tier: 0},
			{Min: 1400, Max: 1600, Tier: 1},
			{Min: 1000, Max: 2000, Tier: 2},
		},
		Patterns: []Pattern{
			{Selector: `[class*='sidebar'] span, [class*='booking'] span`, Tier: 0},
			{Selector: `[class*='total'], [class*='price']`, Tier: 1},
			{Selector: `span, strong, div`, Tier: 2},
		},
	},
	{
		Name:    "onthebeach",
		Domains: []string{"onthebeach.co.uk"},
		Shape:   ShapeTiered,
		Anchor:  1306,
		Ranges:  map[string]Range{"GBP": {Min: 1000, Max: 2000}},
		Bands: []Band{
			{Min: 1200, Max: 1400, Tier: 1},
			{Min: 1000, Max: 2000, Tier: 2},
		},
		Patterns: []Pattern{
			{Selector: `[class*='booking-summary'] span, [class*='price-summary'] span`, Tier: 0},
			{Selector: `[class*='total'] span, [class*='final'] span`, Tier: 1},
			{Selector: `span, strong`, Tier: 2},
		},
	},
	{
		Name:     "skyscanner",
		Domains:  []string{"skyscanner.pk", "skyscanner.net"},
		Shape:    ShapeLowestPrice,
		Currency: "PKR",
		Ranges:   map[string]Range{"PKR": {Min: 10000, Max: 500000}},
		Patterns: []Pattern{
			{Selector: `[data-testid='price']`, Tier: 0},
			{Selector: `[class*='Price'], [class*='FlightPrice']`, Tier: 1},
			{Selector: `[class*='price-text'], [id*='price']`, Tier: 2},
			{Selector: `span, div, button`, Tier: 3},
		},
	},
	{
		Name:    "tui",
		Domains: []string{"tui.co.uk"},
		Shape:   ShapeTotalPrice,
		Ranges: map[string]Range{
			"GBP": {Min: 200, Max: 50000},
			"PKR": {Min: 50000, Max: 2000000},
		},
		Patterns: []Pattern{
			{Selector: `[data-testid='price'], [data-testid='total-price']`, Tier: 0},
			{Selector: `[class*='price-display'], [class*='total-price'], [class*='booking-total'], [class*='price-summary']`, Tier: 1},
			{Selector: `span, div, strong`, Tier: 2},
		},
	},
	{
		Name:    "firstchoice",
		Domains: []string{"firstchoice.co.uk"},
		Shape:   ShapeTotalPrice,
		Ranges:  gbpHoliday,
		Patterns: []Pattern{
			{Selector: `[class*='price-breakdown'] span, [class*='total'] span`, Tier: 0},
			{Selector: `[data-testid='price'], [class*='price']`, Tier: 1},
			{Selector: `strong`, Tier: 2},
		},
	},
	{
		Name:    "lastminute",
		Domains: []string{"lastminute.com"},
		Shape:   ShapeTiered,
		Ranges:  gbpHoliday,
		Patterns: []Pattern{
			{Selector: `[data-testid='price']`, Tier: 0},
			{Selector: `[class*='total-price'], [class*='price-display']`, Tier: 1},
			{Selector: `[class*='price'], strong`, Tier: 2},
		},
	},
	{
		Name:    "expedia",
		Domains: []string{"expedia.co.uk", "expedia.com"},
		Shape:   ShapeTiered,
		Ranges:  gbpHoliday,
		Patterns: []Pattern{
			{Selector: `[data-test-id*='price']`, Tier: 0},
			{Selector: `.price-current, .full-price, .price-summary`, Tier: 1},
			{Selector: `[class*='price']`, Tier: 2},
		},
	},
	{
		Name:    "kayak",
		Domains: []string{"kayak.co.uk", "kayak.com"},
		Shape:   ShapeTiered,
		Ranges:  gbpHoliday,
		Patterns: []Pattern{
			{Selector: `[data-testid='price']`, Tier: 0},
			{Selector: `[class*='price-text'], [class*='price']`, Tier: 1},
			{Selector: `span`, Tier: 2},
		},
	},
	{
		Name:    "jet2",
		Domains: []string{"jet2.com", "jet2holidays.com"},
		Shape:   ShapeTotalPrice,
		Ranges:  gbpHoliday,
		Patterns: []Pattern{
			{Selector: `[class*='total'] span`, Tier: 0},
			{Selector: `[class*='price-display'] span, [class*='booking-total'] span, [class*='price-summary'] span`, Tier: 1},
			{Selector: `[data-testid='price'], [class*='price']`, Tier: 2},
		},
	},
}
