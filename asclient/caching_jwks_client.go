/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package asclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-rsauth/internal/metrics"
)

const DefaultCacheUpdateMinInterval = time.Minute * 1

// DefaultCacheTTL is the default time-to-live for the cached JWKS.
// After this duration, the cached key set is considered expired and will be refetched.
const DefaultCacheTTL = time.Minute * 5

const missingKeysCacheSize = 100

// CachingJWKSClientOpts contains options for CachingJWKSClient.
type CachingJWKSClientOpts struct {
	ClientOpts

	// CacheUpdateMinInterval is a minimal interval between forced cache updates.
	CacheUpdateMinInterval time.Duration

	// CacheTTL is the time-to-live for the cached key set.
	CacheTTL time.Duration
}

// CachingJWKSClient fetches the Authorization Server's JWKS and caches it.
// It's safe for concurrent use. Failed fetches are never cached.
type CachingJWKSClient struct {
	rawClient              *Client
	sfGroup                singleflight.Group
	mu                     sync.RWMutex
	entry                  *keySetCacheEntry
	missingKeys            *lrucache.LRUCache[string, time.Time]
	cacheUpdateMinInterval time.Duration
	cacheTTL               time.Duration
}

type keySetCacheEntry struct {
	updatedAt time.Time
	expiresAt time.Time
	keySet    *PublicKeySet
}

func (e *keySetCacheEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// NewCachingJWKSClient returns a new CachingJWKSClient with default options.
func NewCachingJWKSClient(baseURL string) (*CachingJWKSClient, error) {
	return NewCachingJWKSClientWithOpts(baseURL, CachingJWKSClientOpts{})
}

// NewCachingJWKSClientWithOpts returns a new CachingJWKSClient with options.
func NewCachingJWKSClientWithOpts(baseURL string, opts CachingJWKSClientOpts) (*CachingJWKSClient, error) {
	if opts.CacheUpdateMinInterval <= 0 {
		opts.CacheUpdateMinInterval = DefaultCacheUpdateMinInterval
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	rawClient, err := NewClientWithOpts(baseURL, opts.ClientOpts)
	if err != nil {
		return nil, err
	}
	promMetrics := metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceASClient)
	missingKeys, err := lrucache.New[string, time.Time](missingKeysCacheSize, promMetrics.JWKSMissingKeysCache)
	if err != nil {
		return nil, fmt.Errorf("new lru cache for missing keys: %w", err)
	}
	return &CachingJWKSClient{
		rawClient:              rawClient,
		missingKeys:            missingKeys,
		cacheUpdateMinInterval: opts.CacheUpdateMinInterval,
		cacheTTL:               opts.CacheTTL,
	}, nil
}

// Client returns the underlying non-caching client.
func (cc *CachingJWKSClient) Client() *Client {
	return cc.rawClient
}

// GetKeySet returns the cached key set or fetches it if the cache is empty or expired.
// Concurrent fetches are coalesced into a single request.
func (cc *CachingJWKSClient) GetKeySet(ctx context.Context) (*PublicKeySet, error) {
	if keySet, ok := cc.getFromCache(); ok {
		return keySet, nil
	}
	// The fetch is shared by all waiters and isn't canceled with the caller that started it.
	// The HTTP client timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	res, err, _ := cc.sfGroup.Do("jwks", func() (interface{}, error) {
		if keySet, ok := cc.getFromCache(); ok {
			return keySet, nil
		}
		keySet, err := cc.rawClient.FetchJWKS(fetchCtx)
		if err != nil {
			return nil, err
		}
		cc.mu.Lock()
		cc.storeLocked(keySet)
		cc.mu.Unlock()
		return keySet, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*PublicKeySet), nil
}

// InvalidateIfPossible refetches the key set because a signature made with keyID could not be verified.
// Refetching is skipped if the cache was updated less than CacheUpdateMinInterval ago,
// or if the same key ID was already missing after a refetch within that interval.
// It returns true if the cache was updated.
func (cc *CachingJWKSClient) InvalidateIfPossible(ctx context.Context, keyID string) (invalidated bool, err error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if keyID != "" {
		if missedAt, miss := cc.missingKeys.Get(keyID); miss && time.Since(missedAt) < cc.cacheUpdateMinInterval {
			return false, nil
		}
	}
	if cc.entry != nil && time.Since(cc.entry.updatedAt) < cc.cacheUpdateMinInterval {
		return false, nil
	}

	keySet, err := cc.rawClient.FetchJWKS(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch jwks: %w", err)
	}
	cc.storeLocked(keySet)
	if keyID != "" && !keySet.HasKey(keyID) {
		cc.missingKeys.Add(keyID, time.Now())
	}
	return true, nil
}

func (cc *CachingJWKSClient) getFromCache() (*PublicKeySet, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	if cc.entry == nil || cc.entry.isExpired() {
		return nil, false
	}
	return cc.entry.keySet, true
}

func (cc *CachingJWKSClient) storeLocked(keySet *PublicKeySet) {
	now := time.Now()
	cc.entry = &keySetCacheEntry{updatedAt: now, expiresAt: now.Add(cc.cacheTTL), keySet: keySet}
}
