package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStoreNormalizesPrefix(t *testing.T) {
	for _, raw := range []string{"embeddings", "embeddings/", "/embeddings/"} {
		store := NewStore(nil, "bucket", raw)
		assert.Equal(t, "embeddings", store.prefix, "raw prefix %q", raw)
		assert.Equal(t, "embeddings/abc", store.key("abc"))
	}

	assert.Empty(t, NewStore(nil, "bucket", "").prefix)
}

func TestTrimListedKey(t *testing.T) {
	assert.Equal(t, "abc", trimListedKey("embeddings/abc", "embeddings"))
	assert.Equal(t, "abc", trimListedKey("abc", ""))
	assert.Equal(t, "nested/abc", trimListedKey("root/nested/abc", "root"))
}
