package reconcile

import (
	"sort"
	"sync"
)

// Cache holds the latest known copy of each record of one kind.
//
// The cached updatedAt for an id is never lower than any version applied for
// it. Deleted ids are remembered so a stale upsert arriving after the tombstone
// cannot resurrect the record; ids are never reused by the server.
type Cache struct {
	mu         sync.RWMutex
	records    map[string]Record
	tombstones map[string]struct{}
}

func NewCache() *Cache {
	return &Cache{
		records:    make(map[string]Record),
		tombstones: make(map[string]struct{}),
	}
}

// ApplySnapshot merges a bulk fetch. The snapshot is a floor: records known
// only to the cache are retained.
func (c *Cache) ApplySnapshot(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	Merge(c.records, records, recordID, recordVersion, c.deleted)
}

// ApplyUpsert merges a single created or updated record.
func (c *Cache) ApplyUpsert(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	Merge(c.records, []Record{r}, recordID, recordVersion, c.deleted)
}

// ApplyTombstone removes id unconditionally and remembers it.
func (c *Cache) ApplyTombstone(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
	c.tombstones[id] = struct{}{}
}

func (c *Cache) deleted(id string) bool {
	_, ok := c.tombstones[id]
	return ok
}

// Get returns the cached copy of id.
func (c *Cache) Get(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r, ok
}

// Len reports the number of live records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns the live records ordered by id.
func (c *Cache) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tombstones returns the remembered deleted ids in sorted order.
func (c *Cache) Tombstones() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tombstones))
	for id := range c.tombstones {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
