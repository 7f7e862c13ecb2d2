package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/claimy/claimy-admin/internal/models"
)

// Cache keeps the last record read or written for each case. It is a
// fallback for when the store is unreachable, never the primary read path.
type Cache interface {
	Get(key string) (*models.Case, bool)
	Set(key string, value *models.Case) error
	Delete(key string)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

type LRUCache struct {
	cache   *cache.Cache
	mu      sync.RWMutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) Cache {
	return &LRUCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
		stats:   CacheStats{},
	}
}

func (c *LRUCache) Get(key string) (*models.Case, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		if record, ok := data.(*models.Case); ok {
			c.stats.Hits++
			return clone(record), true
		}
	}

	c.stats.Misses++
	return nil, false
}

func (c *LRUCache) Set(key string, value *models.Case) error {
	if value == nil {
		return fmt.Errorf("cache: nil record for %s", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, clone(value), cache.DefaultExpiration)
	return nil
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.cache.ItemCount()
	return stats
}

// removeOldest evicts the entry closest to expiry, which is the one written
// longest ago since every entry shares the same TTL.
func (c *LRUCache) removeOldest() {
	items := c.cache.Items()
	if len(items) == 0 {
		return
	}

	var oldestKey string
	var oldestExpiration int64

	for key, item := range items {
		if oldestKey == "" || item.Expiration < oldestExpiration {
			oldestKey = key
			oldestExpiration = item.Expiration
		}
	}

	if oldestKey != "" {
		c.cache.Delete(oldestKey)
	}
}

// CaseKey is the cache key of a case record.
func CaseKey(id string) string {
	return fmt.Sprintf("case:%s", id)
}

// clone copies the slices callers might append to, so cached records are
// never shared with handlers.
func clone(record *models.Case) *models.Case {
	out := *record
	out.Emails = append([]models.Email(nil), record.Emails...)
	out.StatusHistory = append([]models.StatusEntry(nil), record.StatusHistory...)
	out.InfoRequestHistory = append([]models.InfoRequest(nil), record.InfoRequestHistory...)
	out.InfoResponseHistory = append([]models.InfoResponse(nil), record.InfoResponseHistory...)
	out.InfoExchanges = append([]models.InfoExchange(nil), record.InfoExchanges...)
	return &out
}
