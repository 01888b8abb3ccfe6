package embedder

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vecsync/vecsync/internal/hasher"
)

// DefaultCacheSize is the default number of embeddings the LRU cache holds.
const DefaultCacheSize = 10000

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is a dense vector for one input text.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // content hash of the input text, used for caching
}

// BatchRequest asks for embeddings of multiple texts in one provider call.
// The response preserves input order and length.
type BatchRequest struct {
	Texts []string
	Model string // optional: override the provider's default model
}

// BatchResponse carries the ordered embeddings for a BatchRequest.
type BatchResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder is the embedding collaborator contract. EmbedBatch must return
// exactly one vector per input text, in input order. Inputs longer than
// MaxInputChars are a caller error: the batch indexer rejects them before
// any call is made.
type Embedder interface {
	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)

	// Embed generates a single embedding.
	Embed(ctx context.Context, text string) (*Embedding, error)

	// Dimension returns the vector dimension for this provider.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Model returns the model name.
	Model() string

	// MaxInputChars returns the provider's declared input-length limit.
	MaxInputChars() int

	// Close releases provider resources.
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		// Only reachable with a non-positive size; fall back to the default.
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get retrieves a deep copy of a cached embedding. A copy is returned so
// caller mutations cannot pollute the cache.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}

	vector := make([]float32, len(emb.Vector))
	copy(vector, emb.Vector)

	return &Embedding{
		Vector:    vector,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding; LRU eviction happens automatically at capacity.
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash derives the cache key for an input text.
func ComputeHash(text string) string {
	return hasher.SumString(text)
}

// ValidateBatchRequest checks a batch request before it reaches a provider.
func ValidateBatchRequest(req BatchRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
