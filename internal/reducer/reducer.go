// Package reducer turns the raw relation edges of a crawl into the minimal
// set of edges worth drawing.
//
// A relation is usually reported from both ends (A is the sequel of B, B is
// the prequel of A). The reverse record adds nothing to a drawing, so one of
// the two is dropped when the pair appears in the implied table, and pairs of
// the same kind collapse into a single undirected edge.
package reducer

import (
	"cmp"
	"slices"

	"github.com/alvmarrod/relation-weaver/internal/storage"
)

// RenderEdge is an edge ready to be drawn
type RenderEdge struct {
	From       storage.ItemID
	To         storage.ItemID
	Kind       string
	Label      string // empty means no label
	Undirected bool
	Emphasized bool
}

type kindPair struct {
	reverse string
	forward string
}

// implied lists (reverse kind, forward kind) pairs where the reverse
// relation already says everything the forward one would.
var implied = map[kindPair]bool{
	{storage.KindSequel, storage.KindPrequel}:        true,
	{storage.KindSideStory, storage.KindParentStory}: true,
	{storage.KindSpinOff, storage.KindParentStory}:   true,
	{storage.KindSummary, storage.KindFullStory}:     true,
	{storage.KindSummary, storage.KindParentStory}:   true,
	{storage.KindParentStory, storage.KindOther}:     true,
	{storage.KindSideStory, storage.KindOther}:       true,
}

// Reduce drops implied and duplicated edges and returns the rest sorted by (From, To).
func Reduce(edges map[storage.EdgeKey]storage.RelationEdge) []RenderEdge {
	out := make([]RenderEdge, 0, len(edges))

	for key, edge := range edges {
		// Each direction is checked on its own; a matched reverse edge is not consumed.
		if CanSkip(edges, edge) {
			continue
		}

		reverse, hasReverse := edges[key.Reverse()]
		undirected := hasReverse && reverse.Kind == edge.Kind
		if undirected && key.From > key.To {
			continue
		}

		out = append(out, RenderEdge{
			From:       key.From,
			To:         key.To,
			Kind:       edge.Kind,
			Label:      label(edge),
			Undirected: undirected,
			Emphasized: edge.Kind == storage.KindSequel,
		})
	}

	slices.SortFunc(out, func(a, b RenderEdge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return out
}

// CanSkip reports whether edge is implied by its reverse in edges
func CanSkip(edges map[storage.EdgeKey]storage.RelationEdge, edge storage.RelationEdge) bool {
	reverse, ok := edges[edge.Key().Reverse()]
	return ok && implied[kindPair{reverse: reverse.Kind, forward: edge.Kind}]
}

func label(edge storage.RelationEdge) string {
	if edge.Kind == storage.KindSequel {
		return ""
	}
	if edge.FormattedLabel != "" {
		return edge.FormattedLabel
	}
	return edge.Kind
}
