// internal/cache/lru.go
//
// Tiny generic LRU used by the rate limiter to bound how many client keys
// it tracks.  Not safe for concurrent use; callers hold their own lock.
package cache

import "container/list"

// LRU is a least-recently-used map with a fixed capacity.  A capacity of 0
// means unbounded.
type LRU[K comparable, V any] struct {
	cap     int
	ll      *list.List
	dict    map[K]*list.Element
	onEvict func(K, V)
}

type pair[K comparable, V any] struct {
	key K
	val V
}

// New returns an LRU with the given capacity.  onEvict, when non-nil, runs
// for every entry pushed out by capacity pressure.  Panics on capacity < 0.
func New[K comparable, V any](capacity int, onEvict func(K, V)) *LRU[K, V] {
	if capacity < 0 {
		panic("cache: capacity must be ≥0")
	}
	return &LRU[K, V]{
		cap:     capacity,
		ll:      list.New(),
		dict:    make(map[K]*list.Element),
		onEvict: onEvict,
	}
}

// Get retrieves a value and marks it MRU.
func (c *LRU[K, V]) Get(key K) (val V, ok bool) {
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// Add inserts or updates a value and marks it MRU.
func (c *LRU[K, V]) Add(key K, val V) {
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair[K, V]{key, val}
		c.ll.MoveToFront(ele)
		return
	}
	c.dict[key] = c.ll.PushFront(pair[K, V]{key, val})
	if c.cap > 0 && c.ll.Len() > c.cap {
		last := c.ll.Back()
		p := last.Value.(pair[K, V])
		c.ll.Remove(last)
		delete(c.dict, p.key)
		if c.onEvict != nil {
			c.onEvict(p.key, p.val)
		}
	}
}

// RemoveIf deletes every entry for which drop returns true and reports how
// many were removed.  Recency order of survivors is unchanged.
func (c *LRU[K, V]) RemoveIf(drop func(K, V) bool) int {
	n := 0
	for ele := c.ll.Back(); ele != nil; {
		prev := ele.Prev()
		p := ele.Value.(pair[K, V])
		if drop(p.key, p.val) {
			c.ll.Remove(ele)
			delete(c.dict, p.key)
			n++
		}
		ele = prev
	}
	return n
}

// Len reports current size.
func (c *LRU[K, V]) Len() int { return c.ll.Len() }
