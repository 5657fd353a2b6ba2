package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got := h.Hash([]byte("https://example.com/docs"))
	require.Len(t, got, 64)
	require.Equal(t, got, h.Hash([]byte("https://example.com/docs")))
	require.NotEqual(t, got, h.Hash([]byte("https://example.com/other")))
}

func TestHasherKnownDigest(t *testing.T) {
	t.Parallel()

	h := New()
	require.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		h.Hash([]byte("hello world")))
}
