// Package report prints crawl progress and the discovered entries to the console.
package report

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// SortedEntries orders entries by release date, then id.
// Unknown dates sort last.
func SortedEntries(entries map[storage.ItemID]storage.Entry) []storage.Entry {
	out := make([]storage.Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b storage.Entry) int {
		if c := cmp.Compare(a.ReleaseDate, b.ReleaseDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// WriteTable prints the entries as a table followed by a total line
func WriteTable(w io.Writer, entries map[storage.ItemID]storage.Entry) error {
	sorted := SortedEntries(entries)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Start date", "Episodes", "Title"})
	for _, entry := range sorted {
		tw.AppendRow(table.Row{strconv.Itoa(int(entry.ID)), entry.ReleaseDate, entry.Episodes(), entry.Title})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	if _, err := fmt.Fprintln(w, tw.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Found a total of %d related entries.\n", len(sorted))
	return err
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ProgressSink receives progress counters besides the console
type ProgressSink interface {
	SetProgress(done, started int)
}

// ProgressPrinter renders crawl progress on a single, rewritten console line
type ProgressPrinter struct {
	w           io.Writer
	interactive bool
	sink        ProgressSink
	printed     bool
}

// NewProgressPrinter creates a printer; on non-terminals progress goes to debug logs
func NewProgressPrinter(w io.Writer, sink ProgressSink) *ProgressPrinter {
	return &ProgressPrinter{
		w:           w,
		interactive: IsTerminal(w),
		sink:        sink,
	}
}

// Update is a crawler progress callback
func (p *ProgressPrinter) Update(done, started int) {
	if p.sink != nil {
		p.sink.SetProgress(done, started)
	}
	if !p.interactive {
		logrus.Debugf("Progress: %d / %d", done, started)
		return
	}
	fmt.Fprintf(p.w, "\rProgress: %d / %d", done, started)
	p.printed = true
}

// Finish ends the progress line
func (p *ProgressPrinter) Finish() {
	if p.printed {
		fmt.Fprintln(p.w)
		p.printed = false
	}
}
