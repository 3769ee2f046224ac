// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preview builds compact, position-annotated excerpts of a document
// around its structural landmarks so an agent can orient itself before
// reading.
//
// The pipeline is FindKeyPositions → Pad → Merge → Render.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/cache"
	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"golang.org/x/sync/errgroup"
)

// DefaultRadius is the context padding around each landmark, in characters.
const DefaultRadius = 100

// Preview is the rendered structural summary of one document.
type Preview struct {
	DocumentID int    `json:"documentId"`
	Length     int    `json:"length"`
	Landmarks  int    `json:"landmarks"`
	Spans      []Span `json:"spans"`
	Text       string `json:"preview"`
}

// Builder renders previews.
//
// Thread Safety: Safe for concurrent use.
type Builder struct {
	radius   int
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRadius sets the context padding. Negative values are ignored.
func WithRadius(radius int) Option {
	return func(b *Builder) {
		if radius >= 0 {
			b.radius = radius
		}
	}
}

// WithCache stores rendered previews in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(b *Builder) {
		b.cache = c
		b.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder with DefaultRadius and no cache.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		radius: DefaultRadius,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Radius returns the configured padding.
func (b *Builder) Radius() int {
	return b.radius
}

// Compute builds the preview of a single text without consulting the cache.
func (b *Builder) Compute(id int, text []rune) *Preview {
	positions := FindKeyPositions(text)
	spans := Merge(Pad(positions, b.radius, len(text)))
	return &Preview{
		DocumentID: id,
		Length:     len(text),
		Landmarks:  len(positions),
		Spans:      spans,
		Text:       Render(text, spans),
	}
}

// Build returns the preview for doc, served from the cache when present.
//
// Cache failures are logged and never fail the build.
func (b *Builder) Build(ctx context.Context, doc *document.Document) *Preview {
	if b.cache == nil {
		return b.Compute(doc.ID, doc.Runes())
	}

	key := cache.Key("preview", doc.Content, strconv.Itoa(b.radius))
	if raw, err := b.cache.Get(ctx, key); err == nil {
		var p Preview
		if err := json.Unmarshal(raw, &p); err == nil {
			p.DocumentID = doc.ID
			return &p
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		b.logger.Warn("preview cache read failed", slog.String("error", err.Error()))
	}

	p := b.Compute(doc.ID, doc.Runes())
	if raw, err := json.Marshal(p); err == nil {
		if err := b.cache.Set(ctx, key, raw, b.cacheTTL); err != nil {
			b.logger.Warn("preview cache write failed", slog.String("error", err.Error()))
		}
	}
	return p
}

// BuildAll builds previews for every document concurrently.
//
// Outputs:
//
//	[]*Preview - One preview per document, in id order.
//	error - Non-nil only if ctx is cancelled before all builds finish.
func (b *Builder) BuildAll(ctx context.Context, set *document.Set) ([]*Preview, error) {
	docs := set.All()
	previews := make([]*Preview, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			previews[i] = b.Build(gctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return previews, nil
}
