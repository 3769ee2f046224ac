// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores rendered document previews keyed by content hash.
//
// Two backends exist: Redis for sharing across server replicas and an
// in-process go-cache store. Tiered combines them, preferring Redis and
// falling back to memory when Redis is unreachable.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-value store with per-entry expiry.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. ttl <= 0 selects the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds "<namespace>:<sha1(content)>[:part...]".
//
// Hashing the content keeps keys short for multi-megabyte documents.
func Key(namespace, content string, parts ...string) string {
	sum := sha1.Sum([]byte(content))
	var sb strings.Builder
	sb.WriteString(namespace)
	sb.WriteByte(':')
	sb.WriteString(hex.EncodeToString(sum[:]))
	for _, p := range parts {
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	return sb.String()
}
