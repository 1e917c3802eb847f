// Package auth guards the HTTP transport with a static bearer token
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerTokenAuth handles Bearer token authentication
type BearerTokenAuth struct {
	token []byte
	realm string
}

// NewBearerTokenAuth creates a new Bearer token authenticator. An empty
// token rejects every request.
func NewBearerTokenAuth(token string) *BearerTokenAuth {
	return &BearerTokenAuth{token: []byte(token), realm: "food-explorer"}
}

// IsAuthorized validates the Bearer token from the Authorization header.
// The scheme is matched case-insensitively, the token exactly.
func (b *BearerTokenAuth) IsAuthorized(r *http.Request) bool {
	if len(b.token) == 0 {
		return false
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), b.token) == 1
}

// SetUnauthorizedHeaders sets the WWW-Authenticate challenge for Bearer auth
func (b *BearerTokenAuth) SetUnauthorizedHeaders(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+b.realm+`"`)
}
