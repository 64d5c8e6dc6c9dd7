package miniostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStoreNormalizesPrefix(t *testing.T) {
	for _, raw := range []string{"cache", "cache/", "/cache/"} {
		store := NewStore(nil, "bucket", raw)
		assert.Equal(t, "cache", store.prefix, "raw prefix %q", raw)
		assert.Equal(t, "cache/abc", store.key("abc"))
	}

	assert.Empty(t, NewStore(nil, "bucket", "").prefix)
}

func TestTrimListedKey(t *testing.T) {
	assert.Equal(t, "abc", trimListedKey("cache/abc", "cache"))
	assert.Equal(t, "abc", trimListedKey("abc", ""))
	assert.Equal(t, "nested/abc", trimListedKey("root/nested/abc", "root"))
}
