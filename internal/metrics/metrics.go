package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/google/uuid"
)

// Tracker holds and manages crawl metrics
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker with a fresh run id
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			RunID:     uuid.NewString(),
			StartTime: time.Now(),
		},
	}
}

// RunID returns the identifier of this run
func (t *Tracker) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.RunID
}

// SetSeed records the id the crawl started from
func (t *Tracker) SetSeed(id storage.ItemID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Seed = id
}

// SetProgress records the latest (done, started) job counters
func (t *Tracker) SetProgress(done, started int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.JobsProcessed = done
	t.data.JobsStarted = started
}

// RecordFetch is a crawler metrics callback
func (t *Tracker) RecordFetch(fetched, failed, entriesAdded, edgesAdded int, fetchTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.FetchesFailed += failed
	t.data.EntriesDiscovered += entriesAdded
	t.data.EdgesRecorded += edgesAdded
	if fetched > 0 || failed > 0 {
		t.totalFetchTimeMs += fetchTime.Milliseconds()
		t.fetchCount++
	}
}

// SetEdgesRendered records how many edges survived reduction
func (t *Tracker) SetEdgesRendered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRendered = n
}

// IncrementImagesDownloaded increments the downloaded images counter
func (t *Tracker) IncrementImagesDownloaded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ImagesDownloaded++
}

// IncrementImagesCached increments the reused images counter
func (t *Tracker) IncrementImagesCached() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ImagesCached++
}

// IncrementImagesFailed increments the failed images counter
func (t *Tracker) IncrementImagesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ImagesFailed++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress returns a one-line summary for periodic logging
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Jobs: %d / %d | Entries: %d | Edges: %d recorded, %d rendered | Failed: %d | Images: %d downloaded, %d cached, %d failed",
		t.data.JobsProcessed,
		t.data.JobsStarted,
		t.data.EntriesDiscovered,
		t.data.EdgesRecorded,
		t.data.EdgesRendered,
		t.data.FetchesFailed,
		t.data.ImagesDownloaded,
		t.data.ImagesCached,
		t.data.ImagesFailed,
	)
}
