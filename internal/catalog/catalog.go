// Package catalog talks to the remote anime catalog (MyAnimeList API v2).
package catalog

import (
	"context"
	"errors"

	"github.com/alvmarrod/relation-weaver/internal/storage"
)

var (
	// ErrUnavailable is returned when the catalog could not serve a request
	// (network, auth or HTTP failure).
	ErrUnavailable = errors.New("catalog unavailable")

	// ErrNotFound is returned when a search has no match.
	ErrNotFound = errors.New("no match")
)

// Relation is a raw relation record as reported by the catalog
type Relation struct {
	RelatedID      storage.ItemID
	Kind           string
	FormattedLabel string
}

// Details is the catalog's view of a single item.
// ReleaseDate is empty and EpisodeCount nil when the catalog omits them.
type Details struct {
	ID           storage.ItemID
	Title        string
	ReleaseDate  string
	EpisodeCount *int
	ImageURL     string
	Relations    []Relation
}

// SearchResult is the best match for a free-text query
type SearchResult struct {
	ID    storage.ItemID
	Title string
}

// Client is the set of catalog reads the tool needs
type Client interface {
	GetDetails(ctx context.Context, id storage.ItemID) (*Details, error)
	Search(ctx context.Context, query string) (*SearchResult, error)
}
