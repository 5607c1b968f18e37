package extract

import (
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"snatcher/internal/browser"
	"snatcher/internal/currency"
	"snatcher/internal/model"
)

// ErrNotFound means no plausible price survived filtering. This is an
// expected, common outcome on pages that render prices late or not at all,
// not a fault.
var ErrNotFound = errors.New("no plausible price found")

// priceRe matches currency-marked numeric substrings. Unmarked numbers are
// too noisy to trust on travel pages (dates, pax counts, phone numbers).
var priceRe = regexp.MustCompile(`(?:£|GBP|Rs\.?|PKR)\s?\d[\d,]*(?:\.\d+)?`)

// Extractor applies extraction rules to rendered pages.
type Extractor struct {
	norm   *currency.Normalizer
	logger *slog.Logger
}

// New creates an Extractor.
func New(norm *currency.Normalizer, logger *slog.Logger) *Extractor {
	return &Extractor{norm: norm, logger: logger}
}

// Extract applies the rule's ordered patterns to the page and returns the
// top-ranked surviving candidate. When no pattern yields a candidate it
// falls back to a whole-page scan; when that also fails it returns
// ErrNotFound.
func (e *Extractor) Extract(page *browser.RenderedPage, rule Rule) (model.PriceCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return model.PriceCandidate{}, err
	}

	cands := e.collect(doc, rule)
	if len(cands) == 0 {
		return e.fallbackScan(doc, rule)
	}
	return pick(cands, rule.Shape), nil
}

// collect runs every pattern, parses each matched text node for
// currency-marked numbers and filters through the rule's plausible ranges
// and tier bands.
func (e *Extractor) collect(doc *goquery.Document, rule Rule) []model.PriceCandidate {
	var cands []model.PriceCandidate
	pos := 0
	seen := make(map[string]bool)

	for _, p := range rule.Patterns {
		doc.Find(p.Selector).Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" || len(text) > 200 {
				return
			}
			for _, raw := range priceRe.FindAllString(text, -1) {
				pos++
				cand, ok := e.candidate(raw, rule, p.Tier, pos)
				if !ok {
					continue
				}
				// The broad tail patterns re-match nodes that earlier,
				// more trusted patterns already yielded; keep the first
				// reading of each raw string.
				if seen[cand.Raw] {
					continue
				}
				seen[cand.Raw] = true
				cands = append(cands, cand)
			}
		})
	}
	return cands
}

// candidate parses one raw price-like substring into a filtered candidate.
func (e *Extractor) candidate(raw string, rule Rule, patternTier, pos int) (model.PriceCandidate, bool) {
	fallbackCur := rule.Currency
	if fallbackCur == "" {
		fallbackCur = e.norm.Base()
	}
	cur := currency.DetectCurrency(raw, fallbackCur)
	amount, ok := currency.ExtractAmount(raw)
	if !ok {
		return model.PriceCandidate{}, false
	}
	if !rule.plausible(amount, cur) {
		return model.PriceCandidate{}, false
	}
	tier, ok := rule.tierFor(amount, patternTier)
	if !ok {
		return model.PriceCandidate{}, false
	}
	dist := 0.0
	if rule.Anchor > 0 {
		dist = amount - rule.Anchor
		if dist < 0 {
			dist = -dist
		}
	}
	return model.PriceCandidate{
		Amount:   amount,
		Currency: cur,
		Raw:      raw,
		Tier:     tier,
		Distance: dist,
		Position: pos,
	}, true
}

// pick ranks candidates per the rule shape and returns the winner.
func pick(cands []model.PriceCandidate, shape Shape) model.PriceCandidate {
	switch shape {
	case ShapeTotalPrice:
		best := cands[0]
		for _, c := range cands[1:] {
			if c.Amount > best.Amount {
				best = c
			}
		}
		return best
	case ShapeLowestPrice:
		best := cands[0]
		for _, c := range cands[1:] {
			if c.Amount < best.Amount {
				best = c
			}
		}
		return best
	default:
		ranked := make([]model.PriceCandidate, len(cands))
		copy(ranked, cands)
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Tier != ranked[j].Tier {
				return ranked[i].Tier < ranked[j].Tier
			}
			if ranked[i].Distance != ranked[j].Distance {
				return ranked[i].Distance < ranked[j].Distance
			}
			return ranked[i].Position < ranked[j].Position
		})
		return ranked[0]
	}
}

// fallbackScan sweeps the whole page text for currency-marked numbers in
// the generic broad range and returns the maximum: on a booking summary the
// total price is usually the largest figure on the page.
func (e *Extractor) fallbackScan(doc *goquery.Document, rule Rule) (model.PriceCandidate, error) {
	text := doc.Text()
	broad := genericRule

	var cands []model.PriceCandidate
	pos := 0
	for _, raw := range priceRe.FindAllString(text, -1) {
		pos++
		fallbackCur := rule.Currency
		if fallbackCur == "" {
			fallbackCur = e.norm.Base()
		}
		cur := currency.DetectCurrency(raw, fallbackCur)
		amount, ok := currency.ExtractAmount(raw)
		if !ok || !broad.plausible(amount, cur) {
			continue
		}
		cands = append(cands, model.PriceCandidate{
			Amount: amount, Currency: cur, Raw: raw, Position: pos,
		})
	}
	if len(cands) == 0 {
		return model.PriceCandidate{}, ErrNotFound
	}
	return pick(cands, ShapeTotalPrice), nil
}
