package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Seed
	}{
		{"numeric id", []string{"5114"}, Seed{ID: 5114}},
		{"item url", []string{"https://myanimelist.net/anime/5114/Fullmetal_Alchemist__Brotherhood"}, Seed{ID: 5114}},
		{"url without scheme", []string{"www.myanimelist.net/anime/21"}, Seed{ID: 21}},
		{"multi word query", []string{"cowboy", "bebop"}, Seed{Query: "cowboy bebop"}},
		{"single word query", []string{"monster"}, Seed{Query: "monster"}},
		{"negative number is a query", []string{"-3"}, Seed{Query: "-3"}},
		{"foreign url is a query", []string{"https://example.com/anime/1"}, Seed{Query: "https://example.com/anime/1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeed(tt.args))
		})
	}
}

func TestExtractItemIDRejectsOtherPages(t *testing.T) {
	_, ok := ExtractItemID("https://myanimelist.net/manga/2")
	assert.False(t, ok)
	_, ok = ExtractItemID("https://myanimelist.net/anime/abc")
	assert.False(t, ok)
}

type searchOnly struct {
	result *SearchResult
	err    error
	calls  int
}

func (s *searchOnly) GetDetails(ctx context.Context, id storage.ItemID) (*Details, error) {
	return nil, errors.New("not used")
}

func (s *searchOnly) Search(ctx context.Context, query string) (*SearchResult, error) {
	s.calls++
	return s.result, s.err
}

func TestResolveSkipsSearchForIDs(t *testing.T) {
	client := &searchOnly{}

	id, title, err := Resolve(context.Background(), client, Seed{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, storage.ItemID(9), id)
	assert.Empty(t, title)
	assert.Zero(t, client.calls)
}

func TestResolveSearchesQueries(t *testing.T) {
	client := &searchOnly{result: &SearchResult{ID: 1, Title: "Cowboy Bebop"}}

	id, title, err := Resolve(context.Background(), client, Seed{Query: "bebop"})
	require.NoError(t, err)
	assert.Equal(t, storage.ItemID(1), id)
	assert.Equal(t, "Cowboy Bebop", title)
}

func TestResolveSurfacesNoMatch(t *testing.T) {
	client := &searchOnly{err: ErrNotFound}

	_, _, err := Resolve(context.Background(), client, Seed{Query: "zzz"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = Resolve(context.Background(), client, Seed{})
	assert.ErrorIs(t, err, ErrNotFound)
}
