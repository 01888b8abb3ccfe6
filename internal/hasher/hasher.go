// Package hasher provides the content-hash primitive used for chunk identity
// and whole-file fingerprinting.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString returns the hex-encoded SHA-256 digest of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// ChunkID derives the content address for a chunk text. Identical text
// always yields the same id, which is what makes cross-document dedup and
// idempotent re-runs work.
func ChunkID(text string) string {
	return SumString(text)
}
