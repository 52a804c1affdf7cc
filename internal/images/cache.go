// Package images keeps a local copy of every discovered entry's cover image.
package images

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alvmarrod/relation-weaver/internal/config"
	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/gocolly/colly/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Recorder receives image download outcomes
type Recorder interface {
	IncrementImagesDownloaded()
	IncrementImagesCached()
	IncrementImagesFailed()
}

// Cache downloads images into a directory and indexes them in storage
type Cache struct {
	dir      string
	store    *storage.Storage
	workers  int
	timeout  time.Duration
	recorder Recorder
}

// NewCache creates the cache directory if needed
func NewCache(cfg *config.Config, store *storage.Storage, recorder Recorder) (*Cache, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image cache dir: %w", err)
	}
	return &Cache{
		dir:      cfg.CacheDir,
		store:    store,
		workers:  cfg.ImageWorkers,
		timeout:  cfg.RequestTimeout(),
		recorder: recorder,
	}, nil
}

// PathFor returns where the image of an item is stored
func (c *Cache) PathFor(id storage.ItemID) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d.jpg", id))
}

// Fetch makes sure every entry with an image has a local copy.
// Returns the local path per item; failed downloads are left out and reported in the error.
func (c *Cache) Fetch(entries map[storage.ItemID]storage.Entry) (map[storage.ItemID]string, error) {
	var (
		mu    sync.Mutex
		paths = make(map[storage.ItemID]string)
		errs  error
	)

	fail := func(id storage.ItemID, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = multierror.Append(errs, fmt.Errorf("image of %d: %w", id, err))
		if c.recorder != nil {
			c.recorder.IncrementImagesFailed()
		}
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(c.timeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.workers,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure downloader: %w", err)
	}

	collector.OnResponse(func(r *colly.Response) {
		id, ok := r.Ctx.GetAny("item_id").(storage.ItemID)
		if !ok {
			return
		}

		path := c.PathFor(id)
		if err := r.Save(path); err != nil {
			fail(id, err)
			return
		}

		rec := storage.ImageRecord{
			ItemID:    id,
			SourceURL: r.Ctx.Get("source_url"),
			LocalPath: path,
			Bytes:     int64(len(r.Body)),
			FetchedAt: time.Now(),
		}
		if err := c.store.UpsertImage(rec); err != nil {
			logrus.Warnf("Failed to index image of %d: %v", id, err)
		}

		logrus.Debugf("Downloaded image of %d (%d bytes)", id, rec.Bytes)
		mu.Lock()
		paths[id] = path
		mu.Unlock()
		if c.recorder != nil {
			c.recorder.IncrementImagesDownloaded()
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Request == nil {
			logrus.Errorf("Image download failed with nil response: %v", err)
			return
		}
		id, ok := r.Request.Ctx.GetAny("item_id").(storage.ItemID)
		if !ok {
			return
		}
		fail(id, fmt.Errorf("%s (status %d): %w", r.Request.URL, r.StatusCode, err))
	})

	for id, entry := range entries {
		if entry.ImageURL == "" {
			continue
		}

		if path, ok := c.cached(entry); ok {
			mu.Lock()
			paths[id] = path
			mu.Unlock()
			if c.recorder != nil {
				c.recorder.IncrementImagesCached()
			}
			continue
		}

		ctx := colly.NewContext()
		ctx.Put("item_id", id)
		ctx.Put("source_url", entry.ImageURL)
		if err := collector.Request(http.MethodGet, entry.ImageURL, nil, ctx, nil); err != nil {
			fail(id, err)
		}
	}

	collector.Wait()
	return paths, errs
}

// cached returns the local path if the entry's current image is already on disk
func (c *Cache) cached(entry storage.Entry) (string, bool) {
	rec, err := c.store.GetImage(entry.ID)
	if err != nil {
		logrus.Warnf("Failed to look up cached image of %d: %v", entry.ID, err)
		return "", false
	}
	if rec == nil || rec.SourceURL != entry.ImageURL {
		return "", false
	}
	if _, err := os.Stat(rec.LocalPath); err != nil {
		return "", false
	}
	return rec.LocalPath, true
}
