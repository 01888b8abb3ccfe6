package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSerializationRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}

	got, err := deserializeVector(serializeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestDeserializeRejectsTruncatedBlob(t *testing.T) {
	_, err := deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "dimension mismatch")
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 2}), "zero magnitude")
	assert.Zero(t, cosineSimilarity(nil, nil))
}
