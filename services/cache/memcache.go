package cache

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService keeps per-site cooldown markers in memcache so that every
// process sharing the server backs off a rate-limited site together
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService connects to serverAddr. Calls give up after 500ms so an
// unresponsive server cannot stall a scrape.
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client: client,
	}
}

// Get returns the marker stored under a cooldown key. memcache.ErrCacheMiss
// means the site is not cooling down.
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set starts a cooldown. memcache expires the key after expiration, which is
// truncated to whole seconds.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete lifts a cooldown before it expires
func (m *MemcacheService) Delete(key string) error {
	return m.client.Delete(key)
}

// Ping checks that the memcache server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}
