package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alvmarrod/relation-weaver/internal/catalog"
	"github.com/alvmarrod/relation-weaver/internal/config"
	"github.com/alvmarrod/relation-weaver/internal/memory"
	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrIncomplete is returned alongside a partial Result when the crawl was cancelled
var ErrIncomplete = errors.New("crawl incomplete")

// CrawlError reports that the seed itself could not be fetched
type CrawlError struct {
	Seed storage.ItemID
	Err  error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl of %d failed: %v", e.Seed, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// ProgressFunc receives the number of finished and started fetches.
// Calls are serialized by the crawler.
type ProgressFunc func(done, started int)

// MetricsFunc receives per-fetch deltas. Must be safe for concurrent use.
type MetricsFunc func(fetched, failed, entriesAdded, edgesAdded int, fetchTime time.Duration)

// Fetcher is the catalog read the crawler depends on
type Fetcher interface {
	GetDetails(ctx context.Context, id storage.ItemID) (*catalog.Details, error)
}

// Result is everything discovered by a crawl
type Result struct {
	Seed       storage.ItemID
	Entries    map[storage.ItemID]storage.Entry
	Edges      map[storage.EdgeKey]storage.RelationEdge
	Failures   map[storage.ItemID]error // non-seed ids that could not be fetched
	Pending    []storage.ItemID         // ids left unresolved by cancellation
	Rounds     int
	Incomplete bool
}

// FailureErr combines the per-id failures into one error, nil if there were none
func (r *Result) FailureErr() error {
	return combineFailures(r.Failures)
}

// Crawler discovers the relation graph reachable from a seed, one BFS round at a time
type Crawler struct {
	client          Fetcher
	workers         int
	metricsCallback MetricsFunc
}

// NewCrawler creates a new crawler instance
func NewCrawler(cfg *config.Config, client Fetcher, metricsCallback MetricsFunc) *Crawler {
	workers := cfg.ConcurrentWorkers
	if workers < config.MinConcurrentWorkers {
		workers = config.MinConcurrentWorkers
	}
	return &Crawler{
		client:          client,
		workers:         workers,
		metricsCallback: metricsCallback,
	}
}

// Crawl fetches the seed and everything transitively related to it.
// A seed failure returns a *CrawlError. Cancelling ctx returns the partial
// result marked Incomplete together with an error wrapping ErrIncomplete.
func (c *Crawler) Crawl(ctx context.Context, seed storage.ItemID, onProgress ProgressFunc) (*Result, error) {
	graph := memory.NewGraph()
	prog := &progress{fn: onProgress}
	attempted := make(map[storage.ItemID]bool)
	result := &Result{
		Seed:     seed,
		Failures: make(map[storage.ItemID]error),
	}

	frontier := NewFrontier(seed)
	for !frontier.IsEmpty() {
		ids := frontier.Items()
		for _, id := range ids {
			attempted[id] = true
		}
		result.Rounds++
		logrus.Infof("Round %d: fetching %d items", result.Rounds, frontier.Size())

		round := c.runRound(ctx, ids, graph, prog)

		// The catalog may answer with a different (canonical) id
		for _, id := range round.resolved {
			attempted[id] = true
		}

		if result.Rounds == 1 {
			if err, failed := round.failures[seed]; failed {
				return nil, &CrawlError{Seed: seed, Err: err}
			}
		}

		if len(round.failures) > 0 {
			logrus.Warnf("Round %d: %d of %d fetches failed: %v",
				result.Rounds, len(round.failures), len(ids), combineFailures(round.failures))
			for id, err := range round.failures {
				result.Failures[id] = err
			}
		}

		entryCount, edgeCount := graph.Stats()
		logrus.Infof("Round %d done: %d entries, %d edges so far", result.Rounds, entryCount, edgeCount)

		next := NewFrontier()
		for _, id := range round.related.Items() {
			if !attempted[id] && !graph.HasEntry(id) {
				next.Push(id)
			}
		}

		if ctx.Err() != nil && (len(round.pending) > 0 || !next.IsEmpty()) {
			result.Incomplete = true
			result.Pending = append(round.pending, next.Items()...)
			slices.Sort(result.Pending)
			break
		}
		frontier = next
	}

	result.Entries = graph.Entries()
	result.Edges = graph.Edges()

	if result.Incomplete {
		logrus.Warnf("Crawl interrupted after %d rounds: %d entries, %d edges, %d ids unresolved",
			result.Rounds, len(result.Entries), len(result.Edges), len(result.Pending))
		return result, fmt.Errorf("%w after %d rounds: %w", ErrIncomplete, result.Rounds, ctx.Err())
	}

	logrus.Infof("Crawl complete: %d entries, %d edges in %d rounds (%d failed)",
		len(result.Entries), len(result.Edges), result.Rounds, len(result.Failures))
	return result, nil
}

// roundResult collects what the workers of one round produced
type roundResult struct {
	mu       sync.Mutex
	related  *Frontier
	failures map[storage.ItemID]error
	pending  []storage.ItemID
	resolved []storage.ItemID
}

func (r *roundResult) addFailure(id storage.ItemID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[id] = err
}

func (r *roundResult) addPending(id storage.ItemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, id)
}

func (r *roundResult) addResolved(id storage.ItemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, id)
}

// runRound fetches every id of the round with at most c.workers in flight
// and returns once all of them resolved.
func (c *Crawler) runRound(ctx context.Context, ids []storage.ItemID, graph *memory.Graph, prog *progress) *roundResult {
	round := &roundResult{
		related:  NewFrontier(),
		failures: make(map[storage.ItemID]error),
	}

	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				round.addPending(id)
				return nil
			}

			prog.start()
			fetchStart := time.Now()
			details, err := c.client.GetDetails(ctx, id)
			elapsed := time.Since(fetchStart)
			prog.finish()

			switch {
			case err != nil && ctx.Err() != nil:
				round.addPending(id)
			case err != nil:
				logrus.Debugf("Fetch of %d failed: %v", id, err)
				round.addFailure(id, err)
				c.report(0, 1, 0, 0, elapsed)
			default:
				c.merge(graph, round, details, elapsed)
			}
			return nil
		})
	}

	// Workers never return errors; failures are collected in round
	_ = g.Wait()
	return round
}

// merge records a fetched item and its relations
func (c *Crawler) merge(graph *memory.Graph, round *roundResult, details *catalog.Details, elapsed time.Duration) {
	entriesAdded := 0
	if graph.AddEntry(newEntry(details)) {
		entriesAdded = 1
	} else if known, ok := graph.Entry(details.ID); ok {
		logrus.Debugf("%d already known as %q, keeping the first answer", details.ID, known.Title)
	}

	edgesAdded := 0
	for _, rel := range details.Relations {
		if rel.RelatedID <= 0 {
			logrus.Debugf("Skipping relation of %d with invalid id %d", details.ID, rel.RelatedID)
			continue
		}
		edge := storage.RelationEdge{
			From:           details.ID,
			To:             rel.RelatedID,
			Kind:           rel.Kind,
			FormattedLabel: rel.FormattedLabel,
		}
		if graph.UpsertEdge(edge) {
			edgesAdded++
		}
		round.related.Push(rel.RelatedID)
	}
	round.addResolved(details.ID)

	logrus.Debugf("Fetched %d %q (%d relations)", details.ID, details.Title, len(details.Relations))
	c.report(1, 0, entriesAdded, edgesAdded, elapsed)
}

func (c *Crawler) report(fetched, failed, entriesAdded, edgesAdded int, elapsed time.Duration) {
	if c.metricsCallback != nil {
		c.metricsCallback(fetched, failed, entriesAdded, edgesAdded, elapsed)
	}
}

// newEntry builds an Entry from catalog details, filling in the release date sentinel
func newEntry(details *catalog.Details) storage.Entry {
	releaseDate := details.ReleaseDate
	if releaseDate == "" {
		releaseDate = storage.UnknownReleaseDate
	}
	return storage.Entry{
		ID:           details.ID,
		Title:        details.Title,
		ReleaseDate:  releaseDate,
		EpisodeCount: details.EpisodeCount,
		ImageURL:     details.ImageURL,
	}
}

// progress owns the fetch counters and serializes calls to the callback
type progress struct {
	mu        sync.Mutex
	started   int
	processed int
	fn        ProgressFunc
}

func (p *progress) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
	p.report()
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
	p.report()
}

func (p *progress) report() {
	if p.fn != nil {
		p.fn(p.processed, p.started)
	}
}

// combineFailures orders failures by id so messages are stable
func combineFailures(failures map[storage.ItemID]error) error {
	if len(failures) == 0 {
		return nil
	}

	ids := make([]storage.ItemID, 0, len(failures))
	for id := range failures {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var err error
	for _, id := range ids {
		err = multierror.Append(err, fmt.Errorf("item %d: %w", id, failures[id]))
	}
	return err
}
