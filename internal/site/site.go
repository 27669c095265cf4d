// Package site maps product URLs to the e-commerce sites the scraper knows how to read.
package site

import "strings"

// ID identifies a supported e-commerce site
type ID string

const (
	Amazon     ID = "amazon"
	Flipkart   ID = "flipkart"
	VijaySales ID = "vijaysales"
	Unknown    ID = "unknown"
)

// rule maps a lower-case URL fragment to a site
type rule struct {
	fragment string
	id       ID
}

// rules is evaluated in order; the first fragment found in the URL wins.
var rules = []rule{
	{fragment: "amazon.", id: Amazon},
	{fragment: "amzn.", id: Amazon},
	{fragment: "flipkart.", id: Flipkart},
	{fragment: "vijaysales.", id: VijaySales},
}

// Classify returns the site a product URL belongs to, or Unknown.
func Classify(rawURL string) ID {
	lower := strings.ToLower(rawURL)
	for _, r := range rules {
		if strings.Contains(lower, r.fragment) {
			return r.id
		}
	}
	return Unknown
}

// Parse maps a user supplied site hint to an ID, or Unknown.
func Parse(s string) ID {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if Known(id) {
		return id
	}
	return Unknown
}

// Known reports whether id is one of the supported sites
func Known(id ID) bool {
	switch id {
	case Amazon, Flipkart, VijaySales:
		return true
	}
	return false
}

// All returns every supported site
func All() []ID {
	return []ID{Amazon, Flipkart, VijaySales}
}

func (id ID) String() string {
	return string(id)
}
