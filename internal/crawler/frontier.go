package crawler

import (
	"slices"
	"sync"

	"github.com/alvmarrod/relation-weaver/internal/storage"
)

// Frontier is a thread-safe set of ids queued for a crawl round
type Frontier struct {
	mu    sync.Mutex
	items []storage.ItemID
	seen  map[storage.ItemID]bool
}

// NewFrontier creates a frontier holding the given ids
func NewFrontier(ids ...storage.ItemID) *Frontier {
	f := &Frontier{
		items: make([]storage.ItemID, 0, len(ids)),
		seen:  make(map[storage.ItemID]bool, len(ids)),
	}
	for _, id := range ids {
		f.Push(id)
	}
	return f
}

// Push adds an id if not already present.
// Returns true if added, false if duplicate
func (f *Frontier) Push(id storage.ItemID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[id] {
		return false
	}
	f.seen[id] = true
	f.items = append(f.items, id)
	return true
}

// Items returns the ids in ascending order
func (f *Frontier) Items() []storage.ItemID {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := slices.Clone(f.items)
	slices.Sort(items)
	return items
}

// IsEmpty returns true if the frontier has no ids
func (f *Frontier) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) == 0
}

// Size returns the number of ids in the frontier
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
