package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/pricewatcher/internal/scraper"
	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/logger"
	apperrors "sjsage522/pricewatcher/pkg/errors"
)

var (
	// ErrDuplicateProduct is returned when adding a URL that is already tracked
	ErrDuplicateProduct = errors.New("product already tracked")
	// ErrProductNotFound is returned for operations on an untracked URL
	ErrProductNotFound = errors.New("product not found")
)

// Outcome reports what RecordObservation did
type Outcome struct {
	Appended bool
	// Previous is the last observation before this call, nil for an empty history
	Previous *PriceObservation
	// Product is the product after the call
	Product Product
}

// ProductStore is the in-memory, insertion-ordered set of tracked products. Every
// mutation is persisted through the RecordStore before it becomes visible, so a
// failed write leaves the store as it was after the last successful one.
//
// When the RecordStore is an Updater, mutations are applied to the document as it
// is on disk, under the store's lock, and memory is resynced from the result. That
// keeps products added or removed by another process intact.
type ProductStore struct {
	mu       sync.RWMutex
	records  RecordStore
	order    []string
	products map[string]Product
	log      *logger.Logger
}

// Open loads the record store into a new ProductStore
func Open(ctx context.Context, records RecordStore) (*ProductStore, error) {
	snap, err := records.Load(ctx)
	if err != nil {
		return nil, apperrors.NewStore("failed to load record store", err)
	}

	s := &ProductStore{
		records: records,
		log:     logger.ForStore(),
	}
	s.replaceLocked(snap)

	s.log.Info().Int("products", len(s.order)).Msg("Record store loaded")
	return s, nil
}

// Refresh reloads the record store, picking up changes made by other writers
func (s *ProductStore) Refresh(ctx context.Context) error {
	snap, err := s.records.Load(ctx)
	if err != nil {
		return apperrors.NewStore("failed to reload record store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(snap)
	return nil
}

// replaceLocked makes snap the in-memory state
func (s *ProductStore) replaceLocked(snap Snapshot) {
	s.order = make([]string, 0, len(snap.Products))
	s.products = make(map[string]Product, len(snap.Products))
	for _, p := range snap.Products {
		if _, dup := s.products[p.URL]; dup {
			s.log.Warn().Str("url", p.URL).Msg("Duplicate product in record store, keeping the first")
			continue
		}
		if p.Site == "" {
			p.Site = site.Classify(p.URL)
		}
		s.order = append(s.order, p.URL)
		s.products[p.URL] = p.clone()
	}
}

// Len returns the number of tracked products
func (s *ProductStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns a copy of the product tracked under url
func (s *ProductStore) Get(url string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[url]
	if !ok {
		return Product{}, false
	}
	return p.clone(), true
}

// List returns copies of all products in insertion order
func (s *ProductStore) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.order))
	for _, url := range s.order {
		out = append(out, s.products[url].clone())
	}
	return out
}

// Add starts tracking url. An unknown id is resolved from the URL.
func (s *ProductStore) Add(ctx context.Context, url string, id site.ID) (Product, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Product{}, apperrors.NewValidation(string(id), "product url is empty")
	}
	if !site.Known(id) {
		id = site.Classify(url)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := Product{URL: url, Site: id, History: []PriceObservation{}}
	err := s.persist(ctx, func(snap *Snapshot) (bool, error) {
		if indexOf(snap, url) >= 0 {
			return false, ErrDuplicateProduct
		}
		snap.Products = append(snap.Products, p.clone())
		return true, nil
	})
	if err != nil {
		return Product{}, err
	}

	s.log.Info().Str("url", url).Str("site", string(id)).Msg("Product added")
	return p.clone(), nil
}

// Remove stops tracking url and drops its history
func (s *ProductStore) Remove(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.persist(ctx, func(snap *Snapshot) (bool, error) {
		i := indexOf(snap, url)
		if i < 0 {
			return false, ErrProductNotFound
		}
		products := make([]Product, 0, len(snap.Products)-1)
		products = append(products, snap.Products[:i]...)
		snap.Products = append(products, snap.Products[i+1:]...)
		return true, nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("url", url).Msg("Product removed")
	return nil
}

// RecordObservation is the only path that appends to a product's history. A new
// observation is appended when the history is empty or the last price differs from
// result.Price; otherwise nothing is changed and nothing is written.
func (s *ProductStore) RecordObservation(ctx context.Context, url string, result scraper.ExtractionResult, now time.Time) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var outcome Outcome
	err := s.persist(ctx, func(snap *Snapshot) (bool, error) {
		i := indexOf(snap, url)
		if i < 0 {
			return false, ErrProductNotFound
		}
		current := snap.Products[i]
		if result.Price == "" {
			return false, apperrors.NewValidation(string(current.Site), "observation has an empty price")
		}

		previous := current.Last()
		if previous != nil && previous.Price == result.Price {
			outcome = Outcome{Appended: false, Previous: previous, Product: current.clone()}
			return false, nil
		}

		observedAt := now.UTC()
		if previous != nil && observedAt.Before(previous.Timestamp) {
			observedAt = previous.Timestamp
		}

		obs := PriceObservation{Price: result.Price, Timestamp: observedAt}
		if result.Coupon != nil {
			available := result.Coupon.Available
			obs.CouponAvailable = &available
			obs.CouponText = result.Coupon.Text
		}

		next := current.clone()
		next.History = append(next.History, obs)
		if next.Title == "" && result.Title != "" {
			next.Title = result.Title
		}

		snap.Products[i] = next
		outcome = Outcome{Appended: true, Previous: previous, Product: next.clone()}
		return true, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func indexOf(snap *Snapshot, url string) int {
	for i := range snap.Products {
		if snap.Products[i].URL == url {
			return i
		}
	}
	return -1
}

func (s *ProductStore) snapshotLocked() Snapshot {
	snap := Snapshot{Products: make([]Product, 0, len(s.order)+1)}
	for _, url := range s.order {
		snap.Products = append(snap.Products, s.products[url].clone())
	}
	return snap
}

// persist runs apply against the current document and, once any write succeeded,
// makes the result the in-memory state. Errors from apply are returned as they are;
// record store failures become store errors.
func (s *ProductStore) persist(ctx context.Context, apply func(*Snapshot) (bool, error)) error {
	var applyErr error
	tracked := func(snap *Snapshot) (bool, error) {
		write, err := apply(snap)
		applyErr = err
		return write, err
	}

	var snap Snapshot
	if u, ok := s.records.(Updater); ok {
		updated, err := u.Update(ctx, tracked)
		if applyErr != nil {
			return applyErr
		}
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to persist record store")
			return apperrors.NewStore("failed to persist record store", err)
		}
		snap = updated
	} else {
		snap = s.snapshotLocked()
		write, err := tracked(&snap)
		if err != nil {
			return err
		}
		if write {
			if err := s.save(ctx, snap); err != nil {
				return err
			}
		}
	}

	s.replaceLocked(snap)
	return nil
}

func (s *ProductStore) save(ctx context.Context, snap Snapshot) error {
	if err := s.records.Save(ctx, snap); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist record store")
		return apperrors.NewStore("failed to persist record store", err)
	}
	return nil
}
