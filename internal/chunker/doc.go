// Package chunker splits extracted document text into overlapping
// fixed-size windows with deterministic boundaries. Determinism is what
// makes content-addressed deduplication work across runs: re-chunking
// identical text yields identical chunk ids.
package chunker
