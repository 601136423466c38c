// Package areapool implements the bounded, spatially-partitioned cache of
// live game artifacts shared by every matchmaking subsystem (spec.md §4.8):
// messages, signs, ghosts and bloodstains, keyed by a title-specific area
// identifier. Grounded on original_source's OnlineAreaPool<IdType,ValueType>
// C++ template; Go generics express the same template directly, and the
// GC supplies the shared ownership the C++ uses shared_ptr for.
package areapool

import (
	"math/rand/v2"
)

// area holds one area key's live entries plus their FIFO insertion order,
// matching spec.md §4.8's entries + insertion_order pair exactly.
type area[ID comparable, V any] struct {
	entries        map[ID]*V
	insertionOrder []ID
}

// Pool is a generic, bounded-per-area cache. K is the area-key type
// (comparable, e.g. a world-area integer or composite struct); ID is the
// per-area entry identifier; V is the artifact type, stored by pointer so
// the pool and any per-session "known artifacts" set can share ownership.
type Pool[K comparable, ID comparable, V any] struct {
	maxPerArea int

	areas map[K]*area[ID, V]
}

// New builds a Pool where each area evicts its oldest entry once it holds
// more than maxPerArea entries.
func New[K comparable, ID comparable, V any](maxPerArea int) *Pool[K, ID, V] {
	return &Pool[K, ID, V]{
		maxPerArea: maxPerArea,
		areas:      make(map[K]*area[ID, V]),
	}
}

func (p *Pool[K, ID, V]) areaFor(key K) *area[ID, V] {
	a, ok := p.areas[key]
	if !ok {
		a = &area[ID, V]{entries: make(map[ID]*V)}
		p.areas[key] = a
	}
	return a
}

// Add inserts value under (areaKey, id). A no-op if id is already present
// (spec.md §4.8 "add: no-op if id already present"). If the area is now
// over capacity, the oldest entry by insertion order is evicted.
func (p *Pool[K, ID, V]) Add(areaKey K, id ID, value *V) {
	a := p.areaFor(areaKey)
	if _, exists := a.entries[id]; exists {
		return
	}

	a.entries[id] = value
	a.insertionOrder = append(a.insertionOrder, id)

	p.trim(a)
}

// trim evicts from the front of insertionOrder until the area is back at
// or under capacity, lazily skipping ids already removed from entries
// (spec.md §4.8: "the pop is lazy ... removal does not traverse the queue").
func (p *Pool[K, ID, V]) trim(a *area[ID, V]) {
	if p.maxPerArea <= 0 {
		return
	}
	for len(a.entries) > p.maxPerArea && len(a.insertionOrder) > 0 {
		oldest := a.insertionOrder[0]
		a.insertionOrder = a.insertionOrder[1:]
		delete(a.entries, oldest)
	}
	p.compactIfStale(a)
}

// compactIfStale drops leading insertionOrder entries no longer present in
// entries, bounding how far stale ids can accumulate without a full scan
// on every Remove.
func (p *Pool[K, ID, V]) compactIfStale(a *area[ID, V]) {
	for len(a.insertionOrder) > 0 {
		if _, ok := a.entries[a.insertionOrder[0]]; ok {
			return
		}
		a.insertionOrder = a.insertionOrder[1:]
	}
}

// Remove deletes (areaKey, id) from entries, leaving its trace in
// insertionOrder to be pruned lazily (spec.md §4.8).
func (p *Pool[K, ID, V]) Remove(areaKey K, id ID) {
	a, ok := p.areas[areaKey]
	if !ok {
		return
	}
	delete(a.entries, id)
	p.compactIfStale(a)
}

// Find returns the entry at (areaKey, id), or (nil, false) if absent.
func (p *Pool[K, ID, V]) Find(areaKey K, id ID) (*V, bool) {
	a, ok := p.areas[areaKey]
	if !ok {
		return nil, false
	}
	v, ok := a.entries[id]
	return v, ok
}

// Contains reports whether (areaKey, id) is currently present.
func (p *Pool[K, ID, V]) Contains(areaKey K, id ID) bool {
	_, ok := p.Find(areaKey, id)
	return ok
}

// RandomSet uniformly samples up to n distinct entries from one area.
func (p *Pool[K, ID, V]) RandomSet(areaKey K, n int) []*V {
	a, ok := p.areas[areaKey]
	if !ok || n <= 0 {
		return nil
	}
	return sampleValues(a.entries, n)
}

// RandomSetFiltered samples up to n distinct entries across any area whose
// key satisfies filter, stopping once n entries have been gathered
// (spec.md §4.8 "random_set(n, area_filter)").
func (p *Pool[K, ID, V]) RandomSetFiltered(n int, filter func(K) bool) []*V {
	if n <= 0 {
		return nil
	}

	var candidates []*V
	for key, a := range p.areas {
		if filter != nil && !filter(key) {
			continue
		}
		for _, v := range a.entries {
			candidates = append(candidates, v)
		}
		if len(candidates) >= n {
			break
		}
	}
	return sampleN(candidates, n)
}

// RecentSet walks an area's insertion order (oldest-first or newest-first,
// per newestFirst), returning up to n entries matching predicate
// (spec.md §4.8 "recent_set").
func (p *Pool[K, ID, V]) RecentSet(areaKey K, n int, newestFirst bool, predicate func(*V) bool) []*V {
	a, ok := p.areas[areaKey]
	if !ok || n <= 0 {
		return nil
	}

	order := a.insertionOrder
	out := make([]*V, 0, n)

	walk := func(id ID) bool {
		v, ok := a.entries[id]
		if !ok {
			return true
		}
		if predicate != nil && !predicate(v) {
			return true
		}
		out = append(out, v)
		return len(out) < n
	}

	if newestFirst {
		for i := len(order) - 1; i >= 0; i-- {
			if !walk(order[i]) {
				break
			}
		}
	} else {
		for _, id := range order {
			if !walk(id) {
				break
			}
		}
	}

	return out
}

// TotalEntries sums live entries across every area.
func (p *Pool[K, ID, V]) TotalEntries() int {
	total := 0
	for _, a := range p.areas {
		total += len(a.entries)
	}
	return total
}

func sampleValues[ID comparable, V any](entries map[ID]*V, n int) []*V {
	candidates := make([]*V, 0, len(entries))
	for _, v := range entries {
		candidates = append(candidates, v)
	}
	return sampleN(candidates, n)
}

// sampleN returns up to n distinct elements of candidates in random order,
// using a partial Fisher-Yates shuffle so it costs O(n) swaps rather than
// sorting the whole slice.
func sampleN[V any](candidates []*V, n int) []*V {
	if n >= len(candidates) {
		out := make([]*V, len(candidates))
		copy(out, candidates)
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}

	pool := make([]*V, len(candidates))
	copy(pool, candidates)

	out := make([]*V, 0, n)
	for i := 0; i < n; i++ {
		j := i + rand.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		out = append(out, pool[i])
	}
	return out
}
