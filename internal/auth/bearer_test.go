package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerTokenAuth_IsAuthorized(t *testing.T) {
	auth := NewBearerTokenAuth("secret-token")

	tests := []struct {
		name       string
		authHeader string
		expected   bool
	}{
		{"valid bearer token", "Bearer secret-token", true},
		{"lowercase scheme", "bearer secret-token", true},
		{"trailing whitespace", "Bearer secret-token ", true},
		{"invalid token", "Bearer wrong-token", false},
		{"token prefix only", "Bearer secret", false},
		{"missing bearer prefix", "secret-token", false},
		{"basic scheme", "Basic secret-token", false},
		{"empty header", "", false},
		{"only bearer", "Bearer", false},
		{"bearer with space only", "Bearer ", false},
		{"case sensitive token", "Bearer SECRET-TOKEN", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/mcp", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			assert.Equal(t, tt.expected, auth.IsAuthorized(req))
		})
	}
}

func TestBearerTokenAuth_EmptyTokenRejectsEverything(t *testing.T) {
	auth := NewBearerTokenAuth("")

	req := httptest.NewRequest("GET", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer ")
	assert.False(t, auth.IsAuthorized(req))

	req.Header.Set("Authorization", "Bearer anything")
	assert.False(t, auth.IsAuthorized(req))
}

func TestBearerTokenAuth_SetUnauthorizedHeaders(t *testing.T) {
	auth := NewBearerTokenAuth("test-token")
	w := httptest.NewRecorder()

	auth.SetUnauthorizedHeaders(w)

	assert.Equal(t, `Bearer realm="food-explorer"`, w.Header().Get("WWW-Authenticate"))
}
