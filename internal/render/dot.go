// Package render writes the reduced relation graph as Graphviz DOT and
// optionally runs the dot binary on it.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alvmarrod/relation-weaver/internal/reducer"
	"github.com/alvmarrod/relation-weaver/internal/report"
	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	GraphName = "anime-graph"
	NodeFont  = "bahnschrift"
	EdgeFont  = "Segoe UI"
	EntryURL  = "https://myanimelist.net/anime/%d"
)

// ErrDotMissing is returned when the Graphviz dot binary is not on PATH
var ErrDotMissing = errors.New("graphviz dot binary not found")

// Options tweaks the generated graph
type Options struct {
	// ImagePaths maps entries to a local cover image shown in their node
	ImagePaths map[storage.ItemID]string
}

// WriteDOT writes the entries as nodes and the reduced edges as DOT edges
func WriteDOT(w io.Writer, entries map[storage.ItemID]storage.Entry, edges []reducer.RenderEdge, opts Options) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("digraph %s {\n", quote(GraphName)))

	for _, entry := range report.SortedEntries(entries) {
		sb.WriteString(fmt.Sprintf("\t%d [label=%s fontname=%s shape=plain]\n",
			entry.ID, nodeLabel(entry, opts.ImagePaths[entry.ID]), quote(NodeFont)))
	}

	for _, id := range missingEndpoints(entries, edges) {
		sb.WriteString(fmt.Sprintf("\t%d [label=%s URL=%s fontname=%s shape=box style=dashed]\n",
			id, quote(fmt.Sprintf("%d\nunavailable", id)), quote(fmt.Sprintf(EntryURL, id)), quote(NodeFont)))
	}

	for _, edge := range edges {
		attrs := []string{}
		if edge.Label != "" {
			attrs = append(attrs, "label="+quote(edge.Label))
		}
		if edge.Undirected {
			attrs = append(attrs, "dir=none")
		}
		attrs = append(attrs, "fontname="+quote(EdgeFont))
		if edge.Emphasized {
			attrs = append(attrs, "penwidth=5")
		} else {
			attrs = append(attrs, "penwidth=1")
		}
		sb.WriteString(fmt.Sprintf("\t%d -> %d [%s]\n", edge.From, edge.To, strings.Join(attrs, " ")))
	}

	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteDOTFile writes the graph to path, creating parent directories
func WriteDOTFile(path string, entries map[storage.ItemID]storage.Entry, edges []reducer.RenderEdge, opts Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dot file: %w", err)
	}

	if err := WriteDOT(f, entries, edges, opts); err != nil {
		f.Close()
		return fmt.Errorf("failed to write dot file: %w", err)
	}
	return f.Close()
}

// RenderFile runs dot on dotPath and returns the rendered file's path
func RenderFile(ctx context.Context, dotPath, format string) (string, error) {
	bin, err := exec.LookPath("dot")
	if err != nil {
		return "", ErrDotMissing
	}

	out := strings.TrimSuffix(dotPath, filepath.Ext(dotPath)) + "." + format
	cmd := exec.CommandContext(ctx, bin, "-T"+format, "-o", out, dotPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("dot failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	logrus.Infof("Rendered %s", out)
	return out, nil
}

// missingEndpoints lists edge ends that have no entry, e.g. ids whose fetch failed
func missingEndpoints(entries map[storage.ItemID]storage.Entry, edges []reducer.RenderEdge) []storage.ItemID {
	seen := make(map[storage.ItemID]bool)
	var missing []storage.ItemID
	for _, edge := range edges {
		for _, id := range []storage.ItemID{edge.From, edge.To} {
			if _, ok := entries[id]; ok || seen[id] {
				continue
			}
			seen[id] = true
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	return missing
}

func nodeLabel(entry storage.Entry, imagePath string) string {
	var sb strings.Builder
	sb.WriteString("<\n")
	sb.WriteString(fmt.Sprintf(`<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" HREF="%s" TOOLTIP="%d">`+"\n",
		fmt.Sprintf(EntryURL, entry.ID), entry.ID))
	sb.WriteString(fmt.Sprintf(`<TR><TD COLSPAN="2"><![CDATA[%s]]></TD></TR>`+"\n", escapeCDATA(entry.Title)))
	sb.WriteString(fmt.Sprintf("<TR><TD>%s episodes</TD><TD>%s</TD></TR>\n", entry.Episodes(), entry.ReleaseDate))
	if imagePath != "" {
		sb.WriteString(fmt.Sprintf(`<TR><TD COLSPAN="2"><IMG SCALE="TRUE" SRC=%s/></TD></TR>`+"\n",
			quote(filepath.ToSlash(imagePath))))
	}
	sb.WriteString("</TABLE>\n>")
	return sb.String()
}

func quote(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
	)
	return `"` + replacer.Replace(s) + `"`
}

// escapeCDATA splits any terminator so the title cannot close the section early
func escapeCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}
