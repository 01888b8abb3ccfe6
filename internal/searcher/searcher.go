package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/vectorstore"
)

// DefaultLimit is the number of results returned when the request does not
// ask for a specific count.
const DefaultLimit = 5

// MaxLimit caps how many results a single query may request.
const MaxLimit = 100

// Request describes one similarity search.
type Request struct {
	Query     string
	ScopeRoot string // empty searches every scope
	Limit     int
	UseCache  bool
	CacheTTL  time.Duration
}

// Response carries results and query metadata.
type Response struct {
	Results  []vectorstore.SearchResult
	Duration time.Duration
	CacheHit bool
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher embeds a query and runs it against the vector store, with an
// LRU cache over recent queries.
type Searcher struct {
	store    vectorstore.Store
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
}

// New creates a Searcher.
func New(store vectorstore.Store, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(fmt.Sprintf("failed to create query cache: %v", err))
	}
	return &Searcher{store: store, embedder: emb, cache: cache}
}

// Search embeds the query text and returns the most similar chunks.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := s.validate(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	key := cacheKey(req)
	if req.UseCache {
		if entry, ok := s.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
			resp := *entry.response
			resp.CacheHit = true
			resp.Duration = time.Since(start)
			return &resp, nil
		}
	}

	emb, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Query(ctx, req.ScopeRoot, emb.Vector, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &Response{Results: results, Duration: time.Since(start)}
	if req.UseCache {
		ttl := req.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		s.cache.Add(key, &cacheEntry{response: resp, expiresAt: time.Now().Add(ttl)})
	}
	return resp, nil
}

func (s *Searcher) validate(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

func cacheKey(req Request) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", req.Query, req.ScopeRoot, req.Limit)))
}
