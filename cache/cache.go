// Package cache tracks the requests currently in flight, keyed by reqId.
package cache

import (
	"sync"
)

type msg struct {
	Key   string
	Value []byte
}

// Cache maps reqIds to the pool they were submitted to and their body.
type Cache struct {
	store map[uint64]msg
	mu    sync.RWMutex
}

func New() *Cache {
	hashtable := make(map[uint64]msg)
	return &Cache{store: hashtable}
}

// Reserve stores the entry unless index is already present and reports
// whether it did.
func (c *Cache) Reserve(index uint64, key string, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.store[index]; ok {
		return false
	}
	c.store[index] = msg{key, value}
	return true
}

func (c *Cache) Get(index uint64) (string, []byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	message, ok := c.store[index]
	return message.Key, message.Value, ok
}

func (c *Cache) Delete(index uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, index)
}

// Keys returns the reqIds in flight for key.
func (c *Cache) Keys(key string) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []uint64
	for index, message := range c.store {
		if message.Key == key {
			out = append(out, index)
		}
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
