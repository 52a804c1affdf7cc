package memory

import (
	"sync"
	"testing"

	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEntryFirstWriteWins(t *testing.T) {
	g := NewGraph()

	assert.True(t, g.AddEntry(storage.Entry{ID: 1, Title: "first"}))
	assert.False(t, g.AddEntry(storage.Entry{ID: 1, Title: "second"}))

	entry, ok := g.Entry(1)
	require.True(t, ok)
	assert.Equal(t, "first", entry.Title)
	assert.True(t, g.HasEntry(1))
	assert.False(t, g.HasEntry(2))

	_, ok = g.Entry(2)
	assert.False(t, ok)
}

func TestUpsertEdgeKeepsOnePerKey(t *testing.T) {
	g := NewGraph()
	edge := storage.RelationEdge{From: 1, To: 2, Kind: storage.KindSequel, FormattedLabel: "Sequel"}

	assert.True(t, g.UpsertEdge(edge))
	assert.False(t, g.UpsertEdge(edge))
	assert.True(t, g.UpsertEdge(storage.RelationEdge{From: 2, To: 1, Kind: storage.KindPrequel}))

	entries, edges := g.Stats()
	assert.Equal(t, 0, entries)
	assert.Equal(t, 2, edges)
	assert.Equal(t, edge, g.Edges()[storage.EdgeKey{From: 1, To: 2}])
}

func TestSnapshotsAreCopies(t *testing.T) {
	g := NewGraph()
	g.AddEntry(storage.Entry{ID: 1})

	snapshot := g.Entries()
	delete(snapshot, 1)

	assert.Len(t, g.Entries(), 1)
}

func TestConcurrentWrites(t *testing.T) {
	g := NewGraph()
	var wg sync.WaitGroup

	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id storage.ItemID) {
			defer wg.Done()
			g.AddEntry(storage.Entry{ID: id})
			g.UpsertEdge(storage.RelationEdge{From: id, To: id + 1, Kind: storage.KindOther})
		}(storage.ItemID(i))
	}
	wg.Wait()

	entries, edges := g.Stats()
	assert.Equal(t, 50, entries)
	assert.Equal(t, 50, edges)
}
