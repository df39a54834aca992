// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lens

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// DefaultArrayCacheCapacity bounds the per-lens array memo when no capacity
// is configured.
const DefaultArrayCacheCapacity = 4096

// arrayMemo caches rewritten array types for one lens.
//
// Description:
//
//	Keyed by the array type as passed to LookupType, valued by the array
//	type rebuilt over the rewritten base element. Bounded with LRU eviction.
//	An evicted entry is recomputed to the same interned pointer.
//
// Thread Safety: All methods are safe for concurrent use. Two goroutines
// missing on the same key may both compute and store; the stored values
// are identical interned pointers.
type arrayMemo struct {
	mu       sync.Mutex
	capacity int
	items    map[*symbol.Type]*list.Element
	order    *list.List // Front = most recent

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type memoEntry struct {
	key   *symbol.Type
	value *symbol.Type
}

func newArrayMemo(capacity int) *arrayMemo {
	if capacity <= 0 {
		capacity = DefaultArrayCacheCapacity
	}
	return &arrayMemo{
		capacity: capacity,
		items:    make(map[*symbol.Type]*list.Element),
		order:    list.New(),
	}
}

// get returns the memoized rewrite of an array type.
func (c *arrayMemo) get(key *symbol.Type) (*symbol.Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		c.hits.Add(1)
		return elem.Value.(*memoEntry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// put stores a rewritten array type, evicting the least recently used entry
// when full.
func (c *arrayMemo) put(key, value *symbol.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*memoEntry).value = value
		return
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*memoEntry).key)
			c.evictions.Add(1)
		}
	}
	c.items[key] = c.order.PushFront(&memoEntry{key: key, value: value})
}

func (c *arrayMemo) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// MemoStats reports array memo effectiveness for one lens.
type MemoStats struct {
	Entries   int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *arrayMemo) stats() MemoStats {
	return MemoStats{
		Entries:   c.len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
