package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSnapshot(t *testing.T) {
	tracker := NewTracker()
	tracker.SetSeed(100)
	tracker.SetProgress(2, 3)
	tracker.RecordFetch(1, 0, 1, 2, 40*time.Millisecond)
	tracker.RecordFetch(0, 1, 0, 0, 20*time.Millisecond)
	tracker.SetEdgesRendered(1)
	tracker.IncrementImagesDownloaded()
	tracker.IncrementImagesCached()
	tracker.IncrementImagesFailed()

	snap := tracker.GetSnapshot()
	assert.Equal(t, storage.ItemID(100), snap.Seed)
	assert.Equal(t, 2, snap.JobsProcessed)
	assert.Equal(t, 3, snap.JobsStarted)
	assert.Equal(t, 1, snap.FetchesFailed)
	assert.Equal(t, 1, snap.EntriesDiscovered)
	assert.Equal(t, 2, snap.EdgesRecorded)
	assert.Equal(t, 1, snap.EdgesRendered)
	assert.Equal(t, int64(60), snap.TotalFetchTimeMs)
	assert.Equal(t, int64(30), snap.AvgFetchTimeMs)
	assert.Equal(t, 1, snap.ImagesDownloaded)

	_, err := uuid.Parse(tracker.RunID())
	assert.NoError(t, err)
	assert.Contains(t, tracker.LogProgress(), "Jobs: 2 / 3")
}

func TestTrackerWriteToFile(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordFetch(1, 0, 1, 0, 10*time.Millisecond)
	path := filepath.Join(t.TempDir(), "metrics.json")

	require.NoError(t, tracker.WriteToFile(path, "completed"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var written storage.Metrics
	require.NoError(t, json.Unmarshal(raw, &written))
	assert.Equal(t, "completed", written.TerminationReason)
	assert.Equal(t, 1, written.EntriesDiscovered)
	assert.Equal(t, tracker.RunID(), written.RunID)
	assert.False(t, written.EndTime.Before(written.StartTime))
}
