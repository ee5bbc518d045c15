package images

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/storage"
)

// Searcher finds and downloads candidate images.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]Hit, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Cache stores keyword lookups plus provider rate and breaker state.
type Cache interface {
	Get(ctx context.Context, keyword string) (string, error)
	Set(ctx context.Context, keyword, url string) error
	IncrMinuteCounter(ctx context.Context) (int64, error)
	BlockUntil(ctx context.Context, until time.Time) error
	Blocked(ctx context.Context) (bool, error)
}

const breakerWindow = 15 * time.Minute

// Resolver turns a search keyword into a final image URL, going through
// the cache, the provider rate budget, the circuit breaker, and optional
// rehosting to object storage. Every failure mode yields an empty URL.
type Resolver struct {
	searcher  Searcher
	cache     Cache
	store     storage.ObjectStorage
	recent    *RecentWindow
	rpmBudget int
}

// NewResolver creates a Resolver. store may be nil to keep provider URLs.
// Parameters:
//   - searcher: image provider client.
//   - cache: keyword cache and rate/breaker state.
//   - store: rehost target, nil disables rehosting.
//   - rpmBudget: soft requests-per-minute budget for the provider.
// Returns:
//   - *Resolver: ready resolver.
func NewResolver(searcher Searcher, cache Cache, store storage.ObjectStorage, rpmBudget int) *Resolver {
	if rpmBudget <= 0 {
		rpmBudget = 25
	}
	return &Resolver{
		searcher:  searcher,
		cache:     cache,
		store:     store,
		recent:    NewRecentWindow(200),
		rpmBudget: rpmBudget,
	}
}

// Resolve returns a public image URL and accent color for the keyword.
// The URL is cached, so repeated keywords cost a single provider search
// until the cache entry expires. The accent is only computed when image
// bytes pass through this process (rehosting on); otherwise it is empty.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search phrase, matched case-insensitively in the cache.
// Returns:
//   - string: final image URL or "".
//   - string: "#rrggbb" accent color or "".
func (r *Resolver) Resolve(ctx context.Context, keyword string) (string, string) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "images")

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", ""
	}

	if cached, err := r.cache.Get(ctx, keyword); err == nil && cached != "" {
		return cached, ""
	}

	if blocked, err := r.cache.Blocked(ctx); err == nil && blocked {
		log.WithField("keyword", keyword).Debug("image provider breaker open, skipping search")
		return "", ""
	}

	// Soft rate gate: past the budget each call pays a one second delay
	// instead of failing, smoothing bursts below the provider's limit.
	if count, err := r.cache.IncrMinuteCounter(ctx); err == nil && count > int64(r.rpmBudget) {
		select {
		case <-ctx.Done():
			return "", ""
		case <-time.After(time.Second):
		}
	}

	hits, err := r.searcher.Search(ctx, keyword)
	if err != nil {
		if errors.Is(err, ErrProviderBlocked) {
			_ = r.cache.BlockUntil(ctx, time.Now().Add(breakerWindow))
			log.Warn("image provider rejected key, opening breaker")
		} else {
			log.WithError(err).WithField("keyword", keyword).Warn("image search failed")
		}
		return "", ""
	}

	hit := Pick(hits, r.recent)
	if hit == nil {
		return "", ""
	}

	finalURL := hit.URL()
	accent := ""
	if r.store != nil {
		rehosted, hex := r.rehost(ctx, keyword, finalURL)
		if rehosted == "" {
			// Without a rehosted copy the provider URL is not cached
			// either; a later attempt may succeed end to end.
			return "", ""
		}
		finalURL = rehosted
		accent = hex
	}

	if err := r.cache.Set(ctx, keyword, finalURL); err != nil {
		log.WithError(err).Debug("failed to cache image url")
	}
	return finalURL, accent
}

func (r *Resolver) rehost(ctx context.Context, keyword, url string) (string, string) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "images")

	data, contentType, err := r.searcher.Download(ctx, url)
	if err != nil {
		log.WithError(err).Warn("image download failed")
		return "", ""
	}

	key := objectKey(keyword, data, contentType)
	if err := r.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.WithError(err).Warn("image rehost failed")
		return "", ""
	}
	return r.store.GetURL(key), AccentHex(data)
}

// objectKey builds a stable storage key from a keyword slug and a
// content hash, so identical images dedupe naturally.
func objectKey(keyword string, data []byte, contentType string) string {
	slug := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			return c
		case c == ' ':
			return '-'
		}
		return -1
	}, strings.ToLower(keyword))
	if slug == "" {
		slug = "image"
	}

	sum := sha1.Sum(data)
	return fmt.Sprintf("images/%s-%s%s", slug, hex.EncodeToString(sum[:8]), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
