// Package imagesearch resolves a representative product image for an
// extracted item. Resolution is best-effort: every failure yields "no image".
package imagesearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/catchsmart/catchsmart/internal/domain"
)

const (
	resultCount = 5
	safeSearch  = "moderate"
	querySuffix = "fishing lure product image"
)

// DefaultTrustedDomains are manufacturer and retailer hosts whose images are
// preferred over arbitrary hits.
var DefaultTrustedDomains = []string{
	"rapala.com", "mepps.com", "savage-gear.com", "berkley-fishing.com",
	"amazon.com", "angelplatz.de", "anglermarkt.de", "fishingtackle24.de",
	"decathlon.de", "askari-sport.com",
}

// Searcher queries an external image search service.
type Searcher interface {
	SearchImages(ctx context.Context, query string, count int, safety string) ([]domain.ImageSearchResult, error)
}

// Cache stores resolved image URLs by query. A miss is reported with
// ok == false; errors are treated as misses by the resolver.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Resolver picks a product image for an item.
type Resolver struct {
	searcher Searcher
	trusted  []string
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(searcher Searcher, trusted []string, cache Cache, cacheTTL time.Duration, logger *slog.Logger) *Resolver {
	if len(trusted) == 0 {
		trusted = DefaultTrustedDomains
	}
	return &Resolver{
		searcher: searcher,
		trusted:  trusted,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Query builds the free-text search query for an item.
func Query(item domain.ExtractedItem) string {
	return strings.Join(strings.Fields(strings.Join([]string{item.Brand, item.Name, item.Model, querySuffix}, " ")), " ")
}

// FindImage returns an image URL for item, or ok == false when none could be
// found or the search failed.
func (r *Resolver) FindImage(ctx context.Context, item domain.ExtractedItem) (string, bool) {
	query := Query(item)
	key := cacheKey(query)

	if r.cache != nil {
		if v, ok, err := r.cache.Get(ctx, key); err != nil {
			r.logger.Warn("image cache get failed", "error", err)
		} else if ok {
			r.logger.Debug("image cache hit", "query", query)
			return v, v != ""
		}
	}

	results, err := r.searcher.SearchImages(ctx, query, resultCount, safeSearch)
	if err != nil {
		r.logger.Warn("image search failed", "item", item.Name, "error", err)
		return "", false
	}

	imageURL := r.pick(results)
	if r.cache != nil {
		// Misses are cached too so a repeated unknown item does not re-query.
		if err := r.cache.Set(ctx, key, imageURL, r.cacheTTL); err != nil {
			r.logger.Warn("image cache set failed", "error", err)
		}
	}
	return imageURL, imageURL != ""
}

// pick returns the first result hosted on a trusted domain, else the first
// result, else "". Results are taken in upstream order; this is first match,
// not best match.
func (r *Resolver) pick(results []domain.ImageSearchResult) string {
	for _, res := range results {
		host := res.SourceDomain
		if u, err := url.Parse(res.URL); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
		if host == "" {
			continue
		}
		for _, d := range r.trusted {
			if strings.Contains(host, d) {
				r.logger.Debug("trusted image found", "host", host)
				return imageOf(res)
			}
		}
	}
	if len(results) == 0 {
		return ""
	}
	return imageOf(results[0])
}

func imageOf(res domain.ImageSearchResult) string {
	if res.ThumbnailURL != "" {
		return res.ThumbnailURL
	}
	return res.URL
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(query)))
	return "imagesearch:" + hex.EncodeToString(sum[:])
}
