// Package cache holds the latest reading per station and the station display
// names learned from station-list responses.
package cache

import (
	"sort"
	"sync"

	"github.com/danmuck/wxdash/internal/protocol"
)

// Cache stores the latest reading per station id. Entries are only created or
// replaced by Save and only removed by Delete; nothing expires.
type Cache struct {
	mu    sync.RWMutex
	items map[int]protocol.WeatherReading
}

func New() *Cache {
	return &Cache{
		items: make(map[int]protocol.WeatherReading),
	}
}

// Save upserts reading by station id. Last write wins.
func (c *Cache) Save(reading protocol.WeatherReading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[reading.StationID] = reading
}

// Delete removes id and reports whether an entry existed.
func (c *Cache) Delete(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

func (c *Cache) Get(id int) (protocol.WeatherReading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// ActiveStations returns the ids with a cached reading, ascending.
func (c *Cache) ActiveStations() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, 0, len(c.items))
	for id := range c.items {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Snapshot returns a copy of every cached reading ordered by station id.
func (c *Cache) Snapshot() []protocol.WeatherReading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.WeatherReading, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StationID < out[j].StationID
	})
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
