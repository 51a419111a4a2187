// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachingResolver memoizes successful resolutions for its own lifetime.
// Entries are replaced wholesale and never patched; callers must Evict or
// Refresh a DID after changing its keys. Failures are not cached.
type CachingResolver struct {
	upstream Resolver
	logger   *slog.Logger

	mu   sync.RWMutex
	docs map[string]*DIDDocument
	// gen counts evictions per DID. A fetch that started under an older
	// generation is returned to its callers but not stored.
	gen   map[string]uint64
	group singleflight.Group
}

// NewCachingResolver wraps upstream.
func NewCachingResolver(upstream Resolver, logger *slog.Logger) *CachingResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingResolver{
		upstream: upstream,
		logger:   logger,
		docs:     make(map[string]*DIDDocument),
		gen:      make(map[string]uint64),
	}
}

// Resolve implements Resolver. Concurrent misses for one DID share a single upstream call.
func (c *CachingResolver) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	c.mu.RLock()
	doc, ok := c.docs[did]
	c.mu.RUnlock()
	if ok {
		return doc, nil
	}

	v, err, _ := c.group.Do(did, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.docs[did]
		gen := c.gen[did]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		fetched, err := c.upstream.Resolve(ctx, did)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		current := c.gen[did] == gen
		if current {
			c.docs[did] = fetched
		}
		c.mu.Unlock()
		if !current {
			c.logger.Debug("DID evicted during resolution, not caching", "did", did)
			return fetched, nil
		}
		c.logger.Debug("cached DID document", "did", did, "keys", len(fetched.PublicKey)+len(fetched.VerificationMethod))
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DIDDocument), nil
}

// Evict drops the cached document for did. A resolution already in flight
// for did still answers its callers but leaves the cache empty.
func (c *CachingResolver) Evict(did string) {
	c.mu.Lock()
	delete(c.docs, did)
	c.gen[did]++
	c.mu.Unlock()
	c.group.Forget(did)
}

// Refresh evicts did and resolves it again.
func (c *CachingResolver) Refresh(ctx context.Context, did string) (*DIDDocument, error) {
	c.Evict(did)
	return c.Resolve(ctx, did)
}

// Len returns the number of cached documents.
func (c *CachingResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
