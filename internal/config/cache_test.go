package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadCacheConfigDefaultPrefixes(t *testing.T) {
	t.Setenv("CACHE_PATH_PREFIXES", "")
	cfg := LoadCacheConfig()
	// Only the unauthenticated catalog may be cached out of the box; the
	// cache runs before route-group auth, so an authenticated prefix here
	// would serve staff responses to anonymous callers.
	assert.Equal(t, []string{"/v1/public"}, cfg.PathPrefixes)
}

func TestParsePrefixes(t *testing.T) {
	assert.Equal(t, []string{"/v1/public", "/v1/extra"}, parsePrefixes(" /v1/public , /v1/extra ,"))
	assert.Nil(t, parsePrefixes(""))
}
