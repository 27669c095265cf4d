package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"sjsage522/pricewatcher/internal/site"
)

// storedProduct accepts both the current layout and the legacy flat layout,
// where every observation was its own {url, site, price, timestamp} entry.
type storedProduct struct {
	URL       string              `json:"url"`
	Site      site.ID             `json:"site"`
	Title     string              `json:"title,omitempty"`
	History   *[]PriceObservation `json:"history,omitempty"`
	Price     *string             `json:"price,omitempty"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
}

type storedSnapshot struct {
	Products []storedProduct `json:"products"`
}

// encodeSnapshot renders the document as 2-space indented JSON
func encodeSnapshot(s Snapshot) ([]byte, error) {
	out := Snapshot{Products: make([]Product, len(s.Products))}
	for i, p := range s.Products {
		if p.History == nil {
			p.History = []PriceObservation{}
		}
		out.Products[i] = p
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode record store: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeSnapshot parses a stored document, folding legacy flat entries into per-product histories
func decodeSnapshot(data []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, nil
	}

	var raw storedSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode record store: %w", err)
	}

	var out Snapshot
	index := make(map[string]int)
	for _, sp := range raw.Products {
		if sp.URL == "" {
			continue
		}
		i, seen := index[sp.URL]
		if !seen {
			i = len(out.Products)
			index[sp.URL] = i
			out.Products = append(out.Products, Product{URL: sp.URL, Site: sp.Site, Title: sp.Title})
		}
		p := &out.Products[i]
		if p.Title == "" {
			p.Title = sp.Title
		}
		if p.Site == "" {
			p.Site = sp.Site
		}

		switch {
		case sp.History != nil:
			p.History = append(p.History, (*sp.History)...)
		case sp.Price != nil:
			obs := PriceObservation{Price: *sp.Price}
			if sp.Timestamp != nil {
				obs.Timestamp = *sp.Timestamp
			}
			p.History = append(p.History, obs)
		}
	}

	for i := range out.Products {
		out.Products[i].History = normalizeHistory(out.Products[i].History)
	}
	return out, nil
}

// normalizeHistory orders observations by time and drops consecutive repeats of the same price
func normalizeHistory(h []PriceObservation) []PriceObservation {
	sort.SliceStable(h, func(a, b int) bool {
		return h[a].Timestamp.Before(h[b].Timestamp)
	})
	out := make([]PriceObservation, 0, len(h))
	for _, o := range h {
		if n := len(out); n > 0 && out[n-1].Price == o.Price {
			continue
		}
		out = append(out, o)
	}
	return out
}
