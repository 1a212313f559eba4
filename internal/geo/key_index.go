package geo

import (
	"sort"
	"sync"
)

// indexEntry is one (geohash, id) pair in a KeyIndex.
type indexEntry struct {
	key string
	id  string
}

func (e indexEntry) less(o indexEntry) bool {
	if e.key == o.key {
		return e.id < o.id
	}
	return e.key < o.key
}

// KeyIndex is an in-memory ordered index of geohash keys. It answers the same
// question a document store answers with an ordered range scan: "which ids
// have a key inside [start, end]?"
//
// Entries are kept in a slice sorted by (key, id), plus a reverse map from id
// to its current key so a move is one delete and one insert instead of a full
// scan.
//
// Go Learning Note — sync.RWMutex:
// RWMutex provides read-write locking. Multiple goroutines can hold a read lock
// simultaneously (RLock), but a write lock (Lock) is exclusive. Nearby queries
// vastly outnumber moves, so readers should never wait on each other.
type KeyIndex struct {
	mu      sync.RWMutex
	entries []indexEntry
	keys    map[string]string // id -> key
}

// NewKeyIndex creates an empty index.
func NewKeyIndex() *KeyIndex {
	return &KeyIndex{keys: make(map[string]string)}
}

// Put sets id's key, moving it if it was already indexed.
func (x *KeyIndex) Put(id, key string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.keys[id]; ok {
		if old == key {
			return
		}
		x.removeLocked(indexEntry{key: old, id: id})
	}

	e := indexEntry{key: key, id: id}
	i := sort.Search(len(x.entries), func(i int) bool { return !x.entries[i].less(e) })
	x.entries = append(x.entries, indexEntry{})
	copy(x.entries[i+1:], x.entries[i:])
	x.entries[i] = e
	x.keys[id] = key
}

// Remove drops id from the index. Removing an unknown id is a no-op.
func (x *KeyIndex) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.keys[id]; ok {
		x.removeLocked(indexEntry{key: old, id: id})
	}
}

func (x *KeyIndex) removeLocked(e indexEntry) {
	i := sort.Search(len(x.entries), func(i int) bool { return !x.entries[i].less(e) })
	if i < len(x.entries) && x.entries[i] == e {
		x.entries = append(x.entries[:i], x.entries[i+1:]...)
	}
	delete(x.keys, e.id)
}

// Range returns up to limit ids whose key lies in r, in key order. A limit
// <= 0 means no limit.
//
// Go Learning Note — sort.Search:
// sort.Search does a binary search for the smallest index where the predicate
// turns true. On a sorted slice that is the first entry >= r.Start, and from
// there we walk forward until we pass r.End.
func (x *KeyIndex) Range(r Range, limit int) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	i := sort.Search(len(x.entries), func(i int) bool { return x.entries[i].key >= r.Start })
	var ids []string
	for ; i < len(x.entries) && x.entries[i].key <= r.End; i++ {
		ids = append(ids, x.entries[i].id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids
}

// Key returns id's current key.
func (x *KeyIndex) Key(id string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	k, ok := x.keys[id]
	return k, ok
}

// Len returns the number of indexed ids.
func (x *KeyIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
