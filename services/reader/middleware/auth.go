// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the reader service.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   └─► authenticator.Authenticate(ctx, token)
//	           │
//	           ▼
//	       Handler
//
// With NopAuthenticator every request is accepted, which is how the server
// runs when no token is configured.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrUnauthorized is returned by an Authenticator that rejects a token.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator validates bearer tokens.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// NopAuthenticator accepts every token, including none.
type NopAuthenticator struct{}

func (NopAuthenticator) Authenticate(context.Context, string) error { return nil }

// TokenAuthenticator accepts a single static token.
type TokenAuthenticator struct {
	reveal func() (string, error)
}

// NewTokenAuthenticator checks tokens against the value returned by
// reveal, which is called per request so the secret stays sealed between
// requests.
func NewTokenAuthenticator(reveal func() (string, error)) *TokenAuthenticator {
	return &TokenAuthenticator{reveal: reveal}
}

func (a *TokenAuthenticator) Authenticate(_ context.Context, token string) error {
	want, err := a.reveal()
	if err != nil {
		return err
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// AuthMiddleware rejects requests whose bearer token the authenticator
// does not accept.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := auth.Authenticate(c.Request.Context(), extractBearerToken(c))
		if errors.Is(err, ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at maxBytes. Zero disables the cap.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" if the header is missing or malformed. The scheme is matched
// case-insensitively.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
