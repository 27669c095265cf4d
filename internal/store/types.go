package store

import (
	"time"

	"sjsage522/pricewatcher/internal/site"
)

// PriceObservation is one recorded price for a product
type PriceObservation struct {
	Price           string    `json:"price"`
	Timestamp       time.Time `json:"timestamp"`
	CouponAvailable *bool     `json:"couponAvailable,omitempty"`
	CouponText      string    `json:"couponText,omitempty"`
}

// Product is a tracked product page and its price history, oldest first
type Product struct {
	URL     string             `json:"url"`
	Site    site.ID            `json:"site"`
	Title   string             `json:"title,omitempty"`
	History []PriceObservation `json:"history"`
}

// Last returns the most recent observation, or nil for an empty history
func (p Product) Last() *PriceObservation {
	if len(p.History) == 0 {
		return nil
	}
	last := p.History[len(p.History)-1].clone()
	return &last
}

// DisplayName is the title when known, the URL otherwise
func (p Product) DisplayName() string {
	if p.Title != "" {
		return p.Title
	}
	return p.URL
}

func (p Product) clone() Product {
	c := p
	c.History = make([]PriceObservation, len(p.History))
	for i, o := range p.History {
		c.History[i] = o.clone()
	}
	return c
}

func (o PriceObservation) clone() PriceObservation {
	c := o
	if o.CouponAvailable != nil {
		v := *o.CouponAvailable
		c.CouponAvailable = &v
	}
	return c
}

// Snapshot is the whole persisted record store document
type Snapshot struct {
	Products []Product `json:"products"`
}
