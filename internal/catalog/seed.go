package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alvmarrod/relation-weaver/internal/storage"
)

// Seed is the user's starting point: either an id or a query to search for
type Seed struct {
	ID    storage.ItemID
	Query string
}

// IsQuery reports whether the seed still needs a search to resolve
func (s Seed) IsQuery() bool {
	return s.ID == 0
}

// ParseSeed interprets command line arguments as an id, an item URL or a query
func ParseSeed(args []string) Seed {
	if len(args) == 1 {
		arg := strings.TrimSpace(args[0])
		if id, err := strconv.Atoi(arg); err == nil && id > 0 {
			return Seed{ID: storage.ItemID(id)}
		}
		if id, ok := ExtractItemID(arg); ok {
			return Seed{ID: id}
		}
	}
	return Seed{Query: strings.TrimSpace(strings.Join(args, " "))}
}

// ExtractItemID pulls the id out of an item page URL such as
// https://myanimelist.net/anime/5114/Fullmetal_Alchemist__Brotherhood
func ExtractItemID(rawURL string) (storage.ItemID, bool) {
	// Handle URLs without a scheme
	if !strings.Contains(rawURL, "://") {
		if !strings.HasPrefix(rawURL, "myanimelist.net/") && !strings.HasPrefix(rawURL, "www.myanimelist.net/") {
			return 0, false
		}
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if host != "myanimelist.net" {
		return 0, false
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "anime" {
		return 0, false
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return storage.ItemID(id), true
}

// Resolve turns a seed into an id, searching the catalog for queries.
// The returned title is empty when the seed was already an id.
func Resolve(ctx context.Context, client Client, seed Seed) (storage.ItemID, string, error) {
	if !seed.IsQuery() {
		return seed.ID, "", nil
	}
	if seed.Query == "" {
		return 0, "", fmt.Errorf("empty seed: %w", ErrNotFound)
	}

	result, err := client.Search(ctx, seed.Query)
	if err != nil {
		return 0, "", err
	}
	return result.ID, result.Title, nil
}
