package scraper

import (
	"strings"

	"sjsage522/pricewatcher/internal/site"
	apperrors "sjsage522/pricewatcher/pkg/errors"
)

// Coupon describes an offer shown next to the price
type Coupon struct {
	Available bool
	Text      string
}

// ExtractionResult is what a strategy pulls out of one product page
type ExtractionResult struct {
	Price  string
	Title  string
	Coupon *Coupon
}

// Locator selects a node and reads either its text or, when Attr is set, one attribute
type Locator struct {
	Selector string
	Attr     string
}

// Read evaluates the locator against doc, returning "" when nothing usable is found
func (l Locator) Read(doc Document) string {
	el := doc.Locate(l.Selector)
	if el == nil {
		return ""
	}
	if l.Attr != "" {
		v, ok := el.Attr(l.Attr)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(el.Text())
}

// SiteConfig contains the locators and defaults for one supported site
type SiteConfig struct {
	Site           site.ID
	PriceLocators  []Locator
	TitleLocators  []Locator
	CouponLocators []Locator
	Currency       string
	WaitPolicy     WaitPolicy
}

// Strategy extracts price, title and coupon data for one site
type Strategy struct {
	Config SiteConfig
}

// Site returns the site this strategy handles
func (s *Strategy) Site() site.ID {
	return s.Config.Site
}

// Extract walks the price locators in order and keeps the first plausible hit. When every
// locator misses it searches the page text for a currency-prefixed number.
func (s *Strategy) Extract(doc Document) (ExtractionResult, error) {
	var result ExtractionResult

	price, ok := s.extractPrice(doc)
	if !ok {
		return result, apperrors.NewPriceNotFound(string(s.Config.Site), doc.URL())
	}
	result.Price = price
	result.Title = firstMatch(doc, s.Config.TitleLocators, nil)

	if text := firstMatch(doc, s.Config.CouponLocators, nil); text != "" {
		result.Coupon = &Coupon{Available: true, Text: text}
	}

	return result, nil
}

func (s *Strategy) extractPrice(doc Document) (string, bool) {
	raw := firstMatch(doc, s.Config.PriceLocators, IsPlausiblePrice)
	if raw != "" {
		if price, ok := NormalizePrice(raw, s.Config.Currency); ok {
			return price, true
		}
	}

	if raw := findPriceInText(doc.BodyText()); raw != "" {
		return NormalizePrice(raw, s.Config.Currency)
	}
	return "", false
}

// firstMatch returns the first non-empty locator result that passes accept
func firstMatch(doc Document, locators []Locator, accept func(string) bool) string {
	for _, l := range locators {
		v := l.Read(doc)
		if v == "" {
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		return v
	}
	return ""
}

// StrategyFor returns the extraction strategy for a known site
func StrategyFor(id site.ID) (*Strategy, error) {
	switch id {
	case site.Amazon:
		return &Strategy{Config: amazonConfig}, nil
	case site.Flipkart:
		return &Strategy{Config: flipkartConfig}, nil
	case site.VijaySales:
		return &Strategy{Config: vijaySalesConfig}, nil
	default:
		return nil, apperrors.NewUnsupportedSite(string(id))
	}
}
