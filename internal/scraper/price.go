package scraper

import (
	"regexp"
	"strings"
)

var (
	// digitRun is the first number in a price text; commas and a decimal part are kept as found
	digitRun = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	// currencyPattern finds a currency marker ahead of the digits
	currencyPattern = regexp.MustCompile(`(₹|Rs\.?|INR|\$|€|£)`)

	// bodyPricePattern is the whole-page fallback: a currency marker directly followed by a number
	bodyPricePattern = regexp.MustCompile(`(?:₹|Rs\.?|INR|\$|€|£)\s?\d[\d,]*(?:\.\d+)?`)

	// plausiblePrice accepts locator text only when it carries a currency symbol or a digit
	plausiblePrice = regexp.MustCompile(`[₹$€£\d]`)
)

// currencySymbols maps textual markers onto the symbol used in stored prices
var currencySymbols = map[string]string{
	"₹":   "₹",
	"Rs":  "₹",
	"Rs.": "₹",
	"INR": "₹",
	"$":   "$",
	"€":   "€",
	"£":   "£",
}

// NormalizePrice reduces raw price text to a single leading currency symbol followed by
// the digit run exactly as found, commas included. The symbol found in raw wins over
// the site default. The result is an opaque token compared byte-for-byte.
func NormalizePrice(raw, currency string) (string, bool) {
	digits := digitRun.FindString(raw)
	if digits == "" {
		return "", false
	}
	digits = strings.TrimRight(digits, ",.")
	if digits == "" {
		return "", false
	}

	symbol := currency
	if loc := digitRun.FindStringIndex(raw); loc != nil {
		if found := currencyPattern.FindAllString(raw[:loc[0]], -1); len(found) > 0 {
			symbol = currencySymbols[found[len(found)-1]]
		}
	}

	return symbol + digits, true
}

// IsPlausiblePrice reports whether locator text could be a price at all
func IsPlausiblePrice(text string) bool {
	return strings.TrimSpace(text) != "" && plausiblePrice.MatchString(text)
}

// findPriceInText searches free text for the first currency-prefixed number
func findPriceInText(text string) string {
	return bodyPricePattern.FindString(text)
}
