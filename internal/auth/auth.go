// Package auth extracts caller identity from inbound requests. Tokens are
// opaque here; the shop's token table decides what they mean.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNotAuthenticated signals a missing or malformed credential.
var ErrNotAuthenticated = errors.New("not authenticated")

// Authenticator resolves an access token to a customer id.
type Authenticator interface {
	CustomerForToken(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the bearer token from an Authorization header.
// Returns ErrNotAuthenticated when the header is absent or not a bearer
// credential.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNotAuthenticated
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNotAuthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// OptionalBearerToken is BearerToken for endpoints that serve anonymous
// callers too: a missing header yields an empty token, a malformed one still
// fails.
func OptionalBearerToken(r *http.Request) (string, error) {
	if r.Header.Get("Authorization") == "" {
		return "", nil
	}
	return BearerToken(r)
}
