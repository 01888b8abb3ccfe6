package chunker

import (
	"fmt"
	"strings"

	"github.com/vecsync/vecsync/internal/hasher"
	"github.com/vecsync/vecsync/pkg/types"
)

const (
	// DefaultChunkSize is the default window size in runes.
	DefaultChunkSize = 900

	// DefaultChunkOverlap is the default overlap between windows in runes.
	DefaultChunkOverlap = 60
)

// Chunker splits document text into fixed-size sliding windows with overlap.
// Chunking is deterministic: identical text always produces identical chunk
// texts and therefore identical chunk ids, across runs and across documents.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. overlap must be smaller than size; violating this
// is a configuration error, not something handled at runtime.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into ordered chunks for the given document. The final
// window may be shorter than the configured size. Windows that are empty
// after whitespace trimming are dropped; ChunkIndex still reflects the order
// of the emitted chunks.
func (c *Chunker) Chunk(text string, meta types.Metadata) []types.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]types.Chunk, 0, (len(runes)+step-1)/step)

	idx := 0
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			m := meta
			m.ChunkIndex = idx
			chunks = append(chunks, types.Chunk{
				ID:       hasher.ChunkID(window),
				Text:     window,
				Metadata: m,
			})
			idx++
		}

		if end == len(runes) {
			break
		}
	}

	// Record how many distinct chunks this document splits into. Stored
	// per chunk because the store is the only place state survives; it is
	// a distinct count since repeated windows share one id.
	distinct := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		distinct[chunks[i].ID] = struct{}{}
	}
	for i := range chunks {
		chunks[i].Metadata.ChunkTotal = len(distinct)
	}

	return chunks
}
