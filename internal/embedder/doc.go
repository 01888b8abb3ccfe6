// Package embedder generates vector embeddings for text chunks.
//
// Three providers are supported, selected by explicit configuration:
//
//   - ollama: a local Ollama server (per-text requests, no batch endpoint)
//   - openai: the OpenAI embeddings API (true batch calls)
//   - local:  deterministic hash-derived vectors for offline use and tests
//
// All providers share an LRU cache keyed by content hash and retry
// transient failures with exponential backoff. EmbedBatch always returns
// one vector per input text, in input order; that contract is what the
// batch indexer's upsert pairing relies on.
package embedder
