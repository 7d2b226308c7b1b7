package modelcache

import (
	"sync"
	"testing"

	"PriceCast/internal/domain/models"
)

func cachedModel(itemID int64) *CachedModel {
	return &CachedModel{Record: &models.ModelRecord{ItemID: itemID}}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(4, nil)
	c.Put(1, cachedModel(1))

	got, ok := c.Get(1)
	if !ok || got.Record.ItemID != 1 {
		t.Fatalf("get = %+v, %v", got, ok)
	}
	if _, ok := c.Get(2); ok {
		t.Fatal("missing item reported present")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, nil)
	c.Put(1, cachedModel(1))
	c.Put(2, cachedModel(2))

	// touch 1 so 2 becomes the eviction candidate
	if _, ok := c.Get(1); !ok {
		t.Fatal("item 1 missing")
	}
	c.Put(3, cachedModel(3))

	if _, ok := c.Get(2); ok {
		t.Fatal("item 2 should be evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("item 1 should survive")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatal("item 3 should be cached")
	}
}

func TestReplaceExistingKeyDoesNotEvict(t *testing.T) {
	c := New(2, nil)
	c.Put(1, cachedModel(1))
	c.Put(2, cachedModel(2))
	c.Put(2, cachedModel(2))

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("replacing a key must not evict another")
	}
}

func TestCapacityOnePlusOne(t *testing.T) {
	c := New(1, nil)
	c.Put(1, cachedModel(1))
	c.Put(2, cachedModel(2))

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(1); ok {
		t.Fatal("item 1 should be evicted at capacity 1")
	}
}

func TestClearAndStatus(t *testing.T) {
	c := New(8, nil)
	c.Put(1, cachedModel(1))
	c.Put(2, cachedModel(2))

	st := c.Status()
	if st.Size != 2 || st.MaxSize != 8 {
		t.Fatalf("status = %+v", st)
	}
	if n := c.Clear(); n != 2 {
		t.Fatalf("clear = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Fatalf("len after clear = %d", c.Len())
	}
}

func TestItemLockIsStable(t *testing.T) {
	c := New(2, nil)
	a := c.ItemLock(7)
	b := c.ItemLock(7)
	if a != b {
		t.Fatal("same item produced different locks")
	}
	c.Remove(7)
	if c.ItemLock(7) != a {
		t.Fatal("removing the model must keep the lock registered")
	}
	if c.ItemLock(8) == a {
		t.Fatal("different items share a lock")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(16, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := int64(i % 32)
				l := c.ItemLock(id)
				l.Lock()
				c.Put(id, cachedModel(id))
				c.Get(id)
				l.Unlock()
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Fatalf("len = %d exceeds capacity", c.Len())
	}
}
