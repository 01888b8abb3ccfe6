package embedder

import (
	"fmt"
	"strings"
)

// Config selects and configures a provider. Selection is explicit: the
// provider named here is the one constructed, there is no environment
// sniffing at runtime.
type Config struct {
	Provider  string // ollama, openai, local
	Model     string // optional model override
	BaseURL   string // ollama server address
	APIKey    string // openai credentials
	CacheSize int    // LRU entries; 0 disables the cache
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupportedModel, cfg.Provider)
	}
}
