// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Tiered reads from a primary cache and falls back to a secondary one.
//
// Writes go to both tiers. Primary failures are logged and never returned,
// so an unreachable Redis degrades to memory-only caching.
//
// Thread Safety: Safe for concurrent use when both tiers are.
type Tiered struct {
	primary  Cache
	fallback Cache
	logger   *slog.Logger
}

// NewTiered combines primary and fallback. A nil primary yields a
// memory-only cache.
func NewTiered(primary, fallback Cache, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{primary: primary, fallback: fallback, logger: logger}
}

// Get implements Cache.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if t.primary != nil {
		b, err := t.primary.Get(ctx, key)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			t.logger.Warn("primary cache unavailable, using fallback",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return t.fallback.Get(ctx, key)
}

// Set implements Cache.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.primary != nil {
		if err := t.primary.Set(ctx, key, value, ttl); err != nil {
			t.logger.Warn("primary cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return t.fallback.Set(ctx, key, value, ttl)
}
