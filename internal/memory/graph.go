package memory

import (
	"sync"

	"github.com/alvmarrod/relation-weaver/internal/storage"
)

// Graph holds the entries and relation edges discovered during a crawl
type Graph struct {
	entries map[storage.ItemID]storage.Entry          // id -> entry
	edges   map[storage.EdgeKey]storage.RelationEdge // (from, to) -> edge
	mu      sync.RWMutex
}

// NewGraph creates a new in-memory graph
func NewGraph() *Graph {
	return &Graph{
		entries: make(map[storage.ItemID]storage.Entry),
		edges:   make(map[storage.EdgeKey]storage.RelationEdge),
	}
}

// AddEntry inserts an entry unless one with the same id exists.
// Returns true if the entry was inserted.
func (g *Graph) AddEntry(entry storage.Entry) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.entries[entry.ID]; exists {
		return false
	}
	g.entries[entry.ID] = entry
	return true
}

// HasEntry reports whether an entry with the id is known
func (g *Graph) HasEntry(id storage.ItemID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.entries[id]
	return exists
}

// Entry retrieves an entry by id
func (g *Graph) Entry(id storage.ItemID) (storage.Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, exists := g.entries[id]
	return entry, exists
}

// UpsertEdge stores an edge, overwriting any edge with the same key.
// Returns true if the key was new.
func (g *Graph) UpsertEdge(edge storage.RelationEdge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edge.Key()
	_, exists := g.edges[key]
	g.edges[key] = edge
	return !exists
}

// Stats returns current graph statistics
func (g *Graph) Stats() (entryCount, edgeCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.entries), len(g.edges)
}

// Entries returns a snapshot of all entries
func (g *Graph) Entries() map[storage.ItemID]storage.Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[storage.ItemID]storage.Entry, len(g.entries))
	for id, entry := range g.entries {
		out[id] = entry
	}
	return out
}

// Edges returns a snapshot of all edges
func (g *Graph) Edges() map[storage.EdgeKey]storage.RelationEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[storage.EdgeKey]storage.RelationEdge, len(g.edges))
	for key, edge := range g.edges {
		out[key] = edge
	}
	return out
}
