package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alvmarrod/relation-weaver/internal/catalog"
	"github.com/alvmarrod/relation-weaver/internal/config"
	"github.com/alvmarrod/relation-weaver/internal/crawler"
	"github.com/alvmarrod/relation-weaver/internal/images"
	"github.com/alvmarrod/relation-weaver/internal/metrics"
	"github.com/alvmarrod/relation-weaver/internal/reducer"
	"github.com/alvmarrod/relation-weaver/internal/render"
	"github.com/alvmarrod/relation-weaver/internal/report"
	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/alvmarrod/relation-weaver/internal/version"
	"github.com/sirupsen/logrus"
)

const progressLogInterval = 10 * time.Second

// run resolves the seed, crawls, reports and draws the graph
func run(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, opts *options, args []string) error {
	tracker := metrics.NewTracker()
	log := logrus.WithField("run_id", tracker.RunID())

	log.Infof("Relation Weaver v%s starting...", version.Version)
	log.Infof("Configuration loaded: workers=%d, rps=%.1f, output=%s",
		cfg.ConcurrentWorkers, cfg.RequestsPerSecond, cfg.OutputPath)

	client, err := catalog.NewMALClient(cfg)
	if err != nil {
		return err
	}

	seed, title, err := catalog.Resolve(ctx, client, catalog.ParseSeed(args))
	if errors.Is(err, catalog.ErrNotFound) {
		fmt.Fprintln(stdout, "No anime found.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve seed: %w", err)
	}
	if title != "" {
		log.Infof("Best match: %d %q", seed, title)
	}
	tracker.SetSeed(seed)

	progress := report.NewProgressPrinter(stderr, tracker)
	c := crawler.NewCrawler(cfg, client, tracker.RecordFetch)

	stopProgress := startProgressLogger(log, tracker, progressLogInterval)
	result, crawlErr := c.Crawl(ctx, seed, progress.Update)
	stopProgress()
	progress.Finish()

	reason := "completed"
	switch {
	case errors.Is(crawlErr, crawler.ErrIncomplete):
		reason = "interrupted"
		log.Warn("Crawl interrupted, reporting partial results")
	case crawlErr != nil:
		writeMetrics(log, tracker, cfg.MetricsPath, "seed_failed")
		return crawlErr
	}

	if err := report.WriteTable(stdout, result.Entries); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}
	if err := result.FailureErr(); err != nil {
		log.Warnf("%d related entries could not be fetched: %v", len(result.Failures), err)
	}

	var imagePaths map[storage.ItemID]string
	if !opts.noImages {
		imagePaths = downloadImages(log, cfg, tracker, result.Entries)
	}

	edges := reducer.Reduce(result.Edges)
	tracker.SetEdgesRendered(len(edges))
	log.Infof("Reduced %d relations to %d edges", len(result.Edges), len(edges))

	if err := render.WriteDOTFile(cfg.OutputPath, result.Entries, edges, render.Options{ImagePaths: imagePaths}); err != nil {
		writeMetrics(log, tracker, cfg.MetricsPath, "render_failed")
		return err
	}
	log.Infof("Graph written to %s", cfg.OutputPath)

	if !opts.noRender {
		// A cancelled crawl still gets its partial graph drawn
		_, err := render.RenderFile(context.WithoutCancel(ctx), cfg.OutputPath, cfg.RenderFormat)
		switch {
		case errors.Is(err, render.ErrDotMissing):
			log.Warnf("Graphviz is not installed, keeping %s", cfg.OutputPath)
		case err != nil:
			log.Errorf("Failed to render graph: %v", err)
		}
	}

	snap := tracker.GetSnapshot()
	log.WithFields(logrus.Fields{
		"rounds":       result.Rounds,
		"avg_fetch_ms": snap.AvgFetchTimeMs,
		"pending":      len(result.Pending),
	}).Info("Final stats: " + tracker.LogProgress())
	writeMetrics(log, tracker, cfg.MetricsPath, reason)

	return crawlErr
}

// downloadImages fills the image cache; failures only cost the pictures
func downloadImages(log *logrus.Entry, cfg *config.Config, tracker *metrics.Tracker, entries map[storage.ItemID]storage.Entry) map[storage.ItemID]string {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Warnf("Image cache unavailable: %v", err)
		return nil
	}

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		log.Warnf("Image cache unavailable: %v", err)
		return nil
	}
	defer store.Close()

	cache, err := images.NewCache(cfg, store, tracker)
	if err != nil {
		log.Warnf("Image cache unavailable: %v", err)
		return nil
	}

	paths, err := cache.Fetch(entries)
	if err != nil {
		log.Warnf("Some images could not be downloaded: %v", err)
	}
	log.Infof("Images ready for %d of %d entries", len(paths), len(entries))
	if indexed, err := store.CountImages(); err == nil {
		log.Debugf("Image index holds %d records", indexed)
	}
	return paths
}

// startProgressLogger logs a metrics summary periodically until the returned func is called
func startProgressLogger(log *logrus.Entry, tracker *metrics.Tracker, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Info(tracker.LogProgress())
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}

func writeMetrics(log *logrus.Entry, tracker *metrics.Tracker, path, reason string) {
	if err := tracker.WriteToFile(path, reason); err != nil {
		log.Errorf("Failed to write metrics: %v", err)
		return
	}
	log.Infof("Metrics written to %s", path)
}
