package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello world"))
	b := Sum([]byte("hello world"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded SHA-256 should be 64 chars")
}

func TestSumDistinguishesContent(t *testing.T) {
	assert.NotEqual(t, Sum([]byte("a")), Sum([]byte("b")))
}

func TestChunkIDMatchesSumString(t *testing.T) {
	text := "some chunk text"
	assert.Equal(t, SumString(text), ChunkID(text))
}

func TestSumEmpty(t *testing.T) {
	// Known SHA-256 of the empty string.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sum(nil))
}
