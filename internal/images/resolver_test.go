package images

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type fakeSearcher struct {
	hits       []Hit
	err        error
	searches   int
	downloads  int
	imageBytes []byte
}

func (f *fakeSearcher) Search(ctx context.Context, keyword string) ([]Hit, error) {
	f.searches++
	return f.hits, f.err
}

func (f *fakeSearcher) Download(ctx context.Context, url string) ([]byte, string, error) {
	f.downloads++
	if f.imageBytes == nil {
		return nil, "", errors.New("no image")
	}
	return f.imageBytes, "image/jpeg", nil
}

type memCache struct {
	entries map[string]string
	counter int64
	blocked bool
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, keyword string) (string, error) {
	return c.entries[strings.ToLower(keyword)], nil
}

func (c *memCache) Set(ctx context.Context, keyword, url string) error {
	c.entries[strings.ToLower(keyword)] = url
	return nil
}

func (c *memCache) IncrMinuteCounter(ctx context.Context) (int64, error) {
	c.counter++
	return c.counter, nil
}

func (c *memCache) BlockUntil(ctx context.Context, until time.Time) error {
	c.blocked = true
	return nil
}

func (c *memCache) Blocked(ctx context.Context) (bool, error) {
	return c.blocked, nil
}

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memStorage) GetURL(key string) string { return "https://cdn.test/" + key }

func (m *memStorage) Delete(ctx context.Context, key string) error { return nil }

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func TestResolveCachesSingleSearch(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{{ID: 1, Likes: 5, LargeURL: "https://img.test/a.jpg"}}}
	cache := newMemCache()
	r := NewResolver(searcher, cache, nil, 25)

	first, _ := r.Resolve(context.Background(), "Mountain Lake")
	if first != "https://img.test/a.jpg" {
		t.Fatalf("first resolve = %q", first)
	}
	second, _ := r.Resolve(context.Background(), "mountain lake")
	if second != first {
		t.Errorf("second resolve = %q, want cached %q", second, first)
	}
	if searcher.searches != 1 {
		t.Errorf("searches = %d, want 1", searcher.searches)
	}
}

func TestResolveEmptyKeyword(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewResolver(searcher, newMemCache(), nil, 25)
	if got, _ := r.Resolve(context.Background(), "  "); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if searcher.searches != 0 {
		t.Error("empty keyword should not hit the provider")
	}
}

func TestResolveOpensBreakerOnBlock(t *testing.T) {
	searcher := &fakeSearcher{err: ErrProviderBlocked}
	cache := newMemCache()
	r := NewResolver(searcher, cache, nil, 25)

	if got, _ := r.Resolve(context.Background(), "anything"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if !cache.blocked {
		t.Error("breaker should be open after a provider block")
	}

	// Calls inside the block window fail fast without searching.
	r.Resolve(context.Background(), "another")
	if searcher.searches != 1 {
		t.Errorf("searches = %d, want 1 (breaker short-circuits)", searcher.searches)
	}
}

func TestResolveNoHits(t *testing.T) {
	r := NewResolver(&fakeSearcher{}, newMemCache(), nil, 25)
	if got, _ := r.Resolve(context.Background(), "obscure"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestResolveRehostsAndCachesFinalURL(t *testing.T) {
	searcher := &fakeSearcher{
		hits:       []Hit{{ID: 9, Likes: 3, LargeURL: "https://img.test/src.jpg"}},
		imageBytes: []byte("jpeg bytes"),
	}
	cache := newMemCache()
	store := &memStorage{}
	r := NewResolver(searcher, cache, store, 25)

	got, _ := r.Resolve(context.Background(), "city skyline")
	if !strings.HasPrefix(got, "https://cdn.test/images/city-skyline-") {
		t.Fatalf("got %q, want rehosted URL", got)
	}
	if cached := cache.entries["city skyline"]; cached != got {
		t.Errorf("cached %q, want final URL %q", cached, got)
	}
	if len(store.objects) != 1 {
		t.Errorf("objects stored = %d, want 1", len(store.objects))
	}
	for key := range store.objects {
		if !bytes.Equal(store.objects[key], searcher.imageBytes) {
			t.Error("stored bytes differ from downloaded bytes")
		}
	}
}

func TestResolveRehostFailureYieldsEmptyAndNoCache(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{{ID: 2, Likes: 1, LargeURL: "https://img.test/x.jpg"}}}
	cache := newMemCache()
	r := NewResolver(searcher, cache, &memStorage{}, 25)

	if got, _ := r.Resolve(context.Background(), "broken"); got != "" {
		t.Fatalf("got %q, want empty on download failure", got)
	}
	if cache.entries["broken"] != "" {
		t.Error("failed rehost must not cache a URL")
	}
}

func TestObjectKeyStable(t *testing.T) {
	a := objectKey("City Skyline!", []byte("data"), "image/png")
	b := objectKey("City Skyline!", []byte("data"), "image/png")
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "images/city-skyline-") || !strings.HasSuffix(a, ".png") {
		t.Errorf("unexpected key shape: %q", a)
	}
}

func TestAccentHexDefaultsOnGarbage(t *testing.T) {
	if got := AccentHex([]byte("not an image")); got != DefaultAccent {
		t.Errorf("got %q, want %q", got, DefaultAccent)
	}
}
