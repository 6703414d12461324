// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package supervisor

import (
	"context"
	"time"

	"github.com/rcpassos/marketscope/internal/logging"
)

// ExpiringCache is the cleanup surface of the response cache.
type ExpiringCache interface {
	CleanupExpired() int
}

// CacheJanitor periodically sweeps expired entries out of the response
// cache. Expired entries are already invisible to readers; the sweep only
// reclaims their memory ahead of LRU pressure.
type CacheJanitor struct {
	cache    ExpiringCache
	interval time.Duration
}

// NewCacheJanitor wraps the cache sweep as a supervised service.
func NewCacheJanitor(cache ExpiringCache, interval time.Duration) *CacheJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CacheJanitor{cache: cache, interval: interval}
}

// Serve implements suture.Service.
func (j *CacheJanitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := j.cache.CleanupExpired(); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("swept expired cache entries")
			}
		}
	}
}

// String implements fmt.Stringer for supervision logs.
func (j *CacheJanitor) String() string {
	return "cache-janitor"
}
