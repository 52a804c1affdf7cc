package storage

import (
	"fmt"
	"time"
)

// UnknownReleaseDate is shown for entries the catalog has no start date for.
// It sorts after any real YYYY-MM-DD date.
const UnknownReleaseDate = "????-??-??"

// Relation kinds reported by the catalog
const (
	KindSequel      = "sequel"
	KindPrequel     = "prequel"
	KindSideStory   = "side_story"
	KindParentStory = "parent_story"
	KindSpinOff     = "spin_off"
	KindSummary     = "summary"
	KindFullStory   = "full_story"
	KindOther       = "other"
)

// ItemID is the catalog identifier of a media item
type ItemID int

// Entry is a discovered catalog item. Never mutated after creation.
type Entry struct {
	ID           ItemID
	Title        string
	ReleaseDate  string
	EpisodeCount *int
	ImageURL     string
}

// Episodes formats the episode count, "?" when unknown
func (e Entry) Episodes() string {
	if e.EpisodeCount == nil || *e.EpisodeCount == 0 {
		return "?"
	}
	return fmt.Sprintf("%d", *e.EpisodeCount)
}

// EdgeKey identifies a directed relation between two items
type EdgeKey struct {
	From ItemID
	To   ItemID
}

// Reverse returns the key of the opposite direction
func (k EdgeKey) Reverse() EdgeKey {
	return EdgeKey{From: k.To, To: k.From}
}

// RelationEdge is a directed, typed relation as reported from the From item
type RelationEdge struct {
	From           ItemID
	To             ItemID
	Kind           string
	FormattedLabel string
}

// Key returns the edge's map key
func (e RelationEdge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To}
}

// ImageRecord describes a downloaded cover image
type ImageRecord struct {
	ItemID    ItemID
	SourceURL string
	LocalPath string
	Bytes     int64
	FetchedAt time.Time
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	RunID             string    `json:"run_id"`
	Seed              ItemID    `json:"seed"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	JobsStarted       int       `json:"jobs_started"`
	JobsProcessed     int       `json:"jobs_processed"`
	FetchesFailed     int       `json:"fetches_failed"`
	EntriesDiscovered int       `json:"entries_discovered"`
	EdgesRecorded     int       `json:"edges_recorded"`
	EdgesRendered     int       `json:"edges_rendered"`
	ImagesDownloaded  int       `json:"images_downloaded"`
	ImagesCached      int       `json:"images_cached"`
	ImagesFailed      int       `json:"images_failed"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
