package images

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alvmarrod/relation-weaver/internal/config"
	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	downloaded, cached, failed atomic.Int32
}

func (r *countingRecorder) IncrementImagesDownloaded() { r.downloaded.Add(1) }
func (r *countingRecorder) IncrementImagesCached()     { r.cached.Add(1) }
func (r *countingRecorder) IncrementImagesFailed()     { r.failed.Add(1) }

func newTestCache(t *testing.T, recorder Recorder) (*Cache, *storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "images.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.CacheDir = filepath.Join(dir, "anime")

	cache, err := NewCache(cfg, store, recorder)
	require.NoError(t, err)
	return cache, store
}

func TestFetchDownloadsAndReuses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg" + r.URL.Path))
	}))
	defer server.Close()

	recorder := &countingRecorder{}
	cache, store := newTestCache(t, recorder)

	entries := map[storage.ItemID]storage.Entry{
		1: {ID: 1, Title: "A", ImageURL: server.URL + "/1.jpg"},
		2: {ID: 2, Title: "B", ImageURL: server.URL + "/missing.jpg"},
		3: {ID: 3, Title: "C"},
	}

	paths, err := cache.Fetch(entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image of 2")
	require.Len(t, paths, 1)
	assert.Equal(t, cache.PathFor(1), paths[1])

	body, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "jpeg/1.jpg", string(body))

	rec, err := store.GetImage(1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, server.URL+"/1.jpg", rec.SourceURL)
	assert.Equal(t, int64(len(body)), rec.Bytes)

	assert.EqualValues(t, 1, recorder.downloaded.Load())
	assert.EqualValues(t, 1, recorder.failed.Load())
	assert.EqualValues(t, 2, hits.Load())

	delete(entries, 2)
	paths, err = cache.Fetch(entries)
	require.NoError(t, err)
	assert.Equal(t, cache.PathFor(1), paths[1])
	assert.EqualValues(t, 1, recorder.cached.Load())
	assert.EqualValues(t, 2, hits.Load())
}

func TestFetchRedownloadsChangedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	cache, store := newTestCache(t, nil)

	_, err := cache.Fetch(map[storage.ItemID]storage.Entry{
		7: {ID: 7, ImageURL: server.URL + "/old.jpg"},
	})
	require.NoError(t, err)

	paths, err := cache.Fetch(map[storage.ItemID]storage.Entry{
		7: {ID: 7, ImageURL: server.URL + "/new.jpg"},
	})
	require.NoError(t, err)

	body, err := os.ReadFile(paths[7])
	require.NoError(t, err)
	assert.Equal(t, "/new.jpg", string(body))

	rec, err := store.GetImage(7)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new.jpg", rec.SourceURL)
}
