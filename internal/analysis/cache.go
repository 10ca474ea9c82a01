package analysis

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	resultCacheMaxEntries = 1024
	resultCacheTTL        = 24 * time.Hour
)

// resultCache keeps analyzer results for articles whose URL and content have
// not changed, so a re-ingested article does not cost another request.
type resultCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type resultCacheEntry struct {
	key       string
	result    Result
	expiresAt time.Time
}

func newResultCache(maxEntries int) *resultCache {
	if maxEntries <= 0 {
		return nil
	}

	return &resultCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func cacheKey(input Input) string {
	h := sha256.New()
	h.Write([]byte(input.URL))
	h.Write([]byte{0})
	h.Write([]byte(input.Title))
	h.Write([]byte{0})
	h.Write([]byte(input.Body))

	return hex.EncodeToString(h.Sum(nil))
}

func (c *resultCache) get(key string, now time.Time) (Result, bool) {
	if c == nil || key == "" {
		return Result{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}

	entry, ok := elem.Value.(*resultCacheEntry)
	if !ok {
		return Result{}, false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return Result{}, false
	}

	c.order.MoveToFront(elem)

	return entry.result, true
}

func (c *resultCache) set(key string, result Result, expiresAt time.Time, now time.Time) {
	if c == nil || key == "" || result.Summary == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*resultCacheEntry)
		if !castOk {
			return
		}

		entry.result = result
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	c.entries[key] = c.order.PushFront(&resultCacheEntry{
		key:       key,
		result:    result,
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *resultCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry, ok := elem.Value.(*resultCacheEntry); ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *resultCache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}

		c.removeElement(elem)
	}
}

func (c *resultCache) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*resultCacheEntry)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
