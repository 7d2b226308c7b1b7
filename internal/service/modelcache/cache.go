package modelcache

import (
	"container/list"
	"sync"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
)

// CachedModel pairs a persisted record with its live submodels.
type CachedModel struct {
	Record    *models.ModelRecord
	Submodels map[string]domsvc.Forecaster
}

type entry struct {
	itemID int64
	model  *CachedModel
}

// Cache is an LRU over trained models, keyed by item. The coarse mutex
// guards only map and list bookkeeping; long operations on a model run
// under that item's lock from ItemLock, so training one item never
// blocks lookups of others.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	byItem  map[int64]*list.Element
	lru     *list.List

	lockMu    sync.Mutex
	itemLocks map[int64]*sync.Mutex

	metrics repository.Metrics
}

// New creates a Cache holding at most maxSize models.
func New(maxSize int, metrics repository.Metrics) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		maxSize:   maxSize,
		byItem:    make(map[int64]*list.Element),
		lru:       list.New(),
		itemLocks: make(map[int64]*sync.Mutex),
		metrics:   metrics,
	}
}

// ItemLock returns the mutex dedicated to one item. Locks are created
// on first use and kept for the process lifetime, so two concurrent
// training cycles for the same item always serialize on the same lock.
func (c *Cache) ItemLock(itemID int64) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	l, ok := c.itemLocks[itemID]
	if !ok {
		l = &sync.Mutex{}
		c.itemLocks[itemID] = l
	}
	return l
}

// Get returns the cached model and marks it most recently used.
func (c *Cache) Get(itemID int64) (*CachedModel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byItem[itemID]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*entry).model, true
}

// Put inserts or replaces the model for an item. Replacing an existing
// key never evicts; inserting a new key at capacity evicts the least
// recently used model first.
func (c *Cache) Put(itemID int64, m *CachedModel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byItem[itemID]; ok {
		el.Value.(*entry).model = m
		c.lru.MoveToFront(el)
		return
	}

	if c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.byItem, oldest.Value.(*entry).itemID)
		}
	}
	c.byItem[itemID] = c.lru.PushFront(&entry{itemID: itemID, model: m})
	c.recordSize()
}

// Remove drops one item's model. The item lock stays registered.
func (c *Cache) Remove(itemID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byItem[itemID]; ok {
		c.lru.Remove(el)
		delete(c.byItem, itemID)
		c.recordSize()
	}
}

// Clear empties the cache and returns how many models were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.byItem = make(map[int64]*list.Element)
	c.lru.Init()
	c.recordSize()
	return n
}

// Len reports the current number of cached models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Items lists cached item ids, most recently used first.
func (c *Cache) Items() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).itemID)
	}
	return out
}

// Status reports size against capacity.
func (c *Cache) Status() models.CacheStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CacheStatus{Size: c.lru.Len(), MaxSize: c.maxSize}
}

func (c *Cache) recordSize() {
	if c.metrics != nil {
		c.metrics.RecordCacheSize(c.lru.Len())
	}
}
