package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() map[storage.ItemID]storage.Entry {
	episodes := 64
	return map[storage.ItemID]storage.Entry{
		3: {ID: 3, Title: "Movie", ReleaseDate: "2011-07-02"},
		1: {ID: 1, Title: "Original", ReleaseDate: "2009-04-05", EpisodeCount: &episodes},
		2: {ID: 2, Title: "Announced", ReleaseDate: storage.UnknownReleaseDate},
		4: {ID: 4, Title: "Same Day", ReleaseDate: "2009-04-05"},
	}
}

func TestSortedEntries(t *testing.T) {
	sorted := SortedEntries(testEntries())

	ids := make([]storage.ItemID, 0, len(sorted))
	for _, e := range sorted {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []storage.ItemID{1, 4, 3, 2}, ids)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testEntries()))

	out := buf.String()
	assert.Contains(t, out, "Original")
	assert.Contains(t, out, "64")
	assert.Contains(t, out, storage.UnknownReleaseDate)
	assert.True(t, strings.HasSuffix(out, "Found a total of 4 related entries.\n"))
	assert.Less(t, strings.Index(out, "Original"), strings.Index(out, "Announced"))
}

type recordingSink struct {
	done, started int
}

func (r *recordingSink) SetProgress(done, started int) {
	r.done, r.started = done, started
}

func TestProgressPrinterNonInteractive(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	p := NewProgressPrinter(&buf, sink)

	p.Update(1, 2)
	p.Finish()

	assert.Empty(t, buf.String())
	assert.Equal(t, 1, sink.done)
	assert.Equal(t, 2, sink.started)
	assert.False(t, IsTerminal(&buf))
}

func TestProgressPrinterInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := &ProgressPrinter{w: &buf, interactive: true}

	p.Update(0, 1)
	p.Update(1, 1)
	p.Finish()

	assert.Equal(t, "\rProgress: 0 / 1\rProgress: 1 / 1\n", buf.String())
}
