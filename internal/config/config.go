// Package config provides YAML-based configuration loading with environment
// variable expansion and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/vecsync/vecsync/internal/chunker"
	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/ingest"
	"github.com/vecsync/vecsync/internal/vectorstore"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Sync      SyncConfig        `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendSQLite, BackendQdrant)),
	); err != nil {
		return err
	}
	if c.Backend == BackendSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("store: backend is %q but sqlite.path is empty", BackendSQLite)
	}
	return nil
}

// SQLiteConfig holds the embedded store's database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig holds the remote store's connection settings.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	CacheSize int    `yaml:"cache_size"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = embedder.ProviderOllama
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(embedder.ProviderOllama, embedder.ProviderOpenAI, embedder.ProviderLocal)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// SyncConfig tunes the ingestion pipeline.
type SyncConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size"`
	Workers      int `yaml:"workers"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.ChunkSize == 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = chunker.DefaultChunkOverlap
	}
	if c.BatchSize == 0 {
		c.BatchSize = ingest.DefaultBatchSize
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.ChunkOverlap, validation.Min(0)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("sync: chunk_overlap %d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// NewDefaultConfig returns a Config with sensible default values: a local
// SQLite store and a local Ollama embedding provider.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
			SQLite:  SQLiteConfig{Path: "./vecsync.db"},
			Qdrant: QdrantConfig{
				Addr:       vectorstore.DefaultQdrantAddr,
				Collection: vectorstore.DefaultCollection,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:  embedder.ProviderOllama,
			Model:     embedder.DefaultOllamaModel,
			CacheSize: embedder.DefaultCacheSize,
		},
		Sync: SyncConfig{
			ChunkSize:    chunker.DefaultChunkSize,
			ChunkOverlap: chunker.DefaultChunkOverlap,
			BatchSize:    ingest.DefaultBatchSize,
		},
	}
}

// Load reads a YAML config file with environment variable expansion and
// validates the result. A missing file returns the defaults unchanged.
func Load(filename string) (*Config, error) {
	cfg := NewDefaultConfig()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
