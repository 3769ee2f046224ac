// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianReader/services/reader/tools"
	"golang.org/x/time/rate"
)

// RateLimitedClient throttles calls to a Client. The limiter is shared by
// every run using the client.
type RateLimitedClient struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps client with a token bucket of rps requests
// per second and the given burst. rps <= 0 returns client unchanged.
func NewRateLimitedClient(client Client, rps float64, burst int) Client {
	if rps <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{Client: client, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Complete waits for a token, then delegates.
func (c *RateLimitedClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.Client.Complete(ctx, request)
}

// RateLimitedVision throttles a tools.VisionAnalyzer.
type RateLimitedVision struct {
	vision  tools.VisionAnalyzer
	limiter *rate.Limiter
}

// NewRateLimitedVision wraps vision. rps <= 0 returns vision unchanged.
func NewRateLimitedVision(vision tools.VisionAnalyzer, rps float64, burst int) tools.VisionAnalyzer {
	if rps <= 0 || vision == nil {
		return vision
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedVision{vision: vision, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Analyze waits for a token, then delegates.
func (v *RateLimitedVision) Analyze(ctx context.Context, instruction, imageRef string) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return v.vision.Analyze(ctx, instruction, imageRef)
}
