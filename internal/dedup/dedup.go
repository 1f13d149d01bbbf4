// Package dedup suppresses repeated reports inside a fixed recency window.
package dedup

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/clock"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
)

// entry is one remembered report fingerprint. Expiry is measured from the
// first observation; later duplicates do not extend it.
type entry struct {
	Key       string    `json:"key"`
	FirstSeen time.Time `json:"first_seen_at"`
}

// Cache remembers report fingerprints for a bounded window with an entry cap.
// Params: window retention, max entries, and clock source.
// Returns: duplicate detection over recent reports.
type Cache struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	order  *list.List
	index  map[string]*list.Element
	clk    clock.Clock
}

// New builds a dedup cache from configuration.
// Params: cfg holds window and cap; clk supplies current time.
// Returns: empty cache.
func New(cfg config.DedupConfig, clk clock.Clock) *Cache {
	return &Cache{
		window: time.Duration(cfg.WindowSec) * time.Second,
		max:    cfg.MaxEntries,
		order:  list.New(),
		index:  make(map[string]*list.Element),
		clk:    clk,
	}
}

// Observe records a fingerprint and reports whether it is a recent duplicate.
// Params: key is the report fingerprint.
// Returns: true when key was already seen inside the window.
func (c *Cache) Observe(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	c.prune(now)

	if _, ok := c.index[key]; ok {
		return true
	}

	c.index[key] = c.order.PushBack(&entry{Key: key, FirstSeen: now})
	for c.order.Len() > c.max {
		c.evictOldest()
	}
	return false
}

// Len reports how many fingerprints are currently remembered.
// Params: none.
// Returns: entry count after pruning expired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(c.clk.Now())
	return c.order.Len()
}

// prune drops entries older than the window. Caller holds the lock.
func (c *Cache) prune(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		if now.Sub(front.Value.(*entry).FirstSeen) <= c.window {
			return
		}
		c.evict(front)
	}
}

// evictOldest removes the earliest recorded entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	if front := c.order.Front(); front != nil {
		c.evict(front)
	}
}

func (c *Cache) evict(elem *list.Element) {
	delete(c.index, elem.Value.(*entry).Key)
	c.order.Remove(elem)
}

// Save writes remembered fingerprints to a state file.
// Params: path is the state file location; empty path is a no-op.
// Returns: write error.
func (c *Cache) Save(path string) error {
	if path == "" {
		return nil
	}

	c.mu.Lock()
	c.prune(c.clk.Now())
	entries := make([]entry, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, *elem.Value.(*entry))
	}
	c.mu.Unlock()

	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode dedup state: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write dedup state %q: %w", path, err)
	}
	return nil
}

// Load restores fingerprints from a state file written by Save.
// Params: path is the state file location; empty or missing path is a no-op.
// Returns: read or decode error.
func (c *Cache) Load(path string) error {
	if path == "" {
		return nil
	}

	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dedup state %q: %w", path, err)
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return fmt.Errorf("decode dedup state %q: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()
	for i := range entries {
		restored := entries[i]
		if now.Sub(restored.FirstSeen) > c.window {
			continue
		}
		if _, ok := c.index[restored.Key]; ok {
			continue
		}
		c.index[restored.Key] = c.order.PushBack(&restored)
	}
	for c.order.Len() > c.max {
		c.evictOldest()
	}
	return nil
}
