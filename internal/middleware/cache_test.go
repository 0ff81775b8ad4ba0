package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheablePath(t *testing.T) {
	prefixes := []string{"/v1/public"}
	assert.True(t, cacheablePath(prefixes, "/v1/public/books"))
	assert.True(t, cacheablePath(prefixes, "/v1/public/resources"))
	assert.True(t, cacheablePath(prefixes, "/v1/public/search"))
	// Authenticated endpoints must never be cached: the middleware runs
	// before route-group auth and keys carry no caller identity.
	assert.False(t, cacheablePath(prefixes, "/v1/dashboard/stats"))
	assert.False(t, cacheablePath(prefixes, "/v1/loans/me"))
	assert.False(t, cacheablePath(prefixes, "/v1/reservations"))
	assert.False(t, cacheablePath(nil, "/v1/public/books"))
}
