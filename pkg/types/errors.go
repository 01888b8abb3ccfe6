package types

import "errors"

// Error taxonomy for a sync run. Callers classify failures with errors.Is.
var (
	// ErrExtraction marks a per-file extraction failure. The file is skipped
	// and reported in the run summary; the run continues.
	ErrExtraction = errors.New("extraction failed")

	// ErrOversizedChunk means a chunk exceeds the embedding provider's input
	// limit. This is a configuration defect and fails the run before any
	// embedding call is attempted.
	ErrOversizedChunk = errors.New("chunk exceeds embedding input limit")

	// ErrEmbeddingCall marks a failed embedding request. The current batch is
	// aborted before any upsert; previously committed batches stay durable
	// and a re-run retries only what is missing.
	ErrEmbeddingCall = errors.New("embedding call failed")

	// ErrStoreWrite marks a failed vector store write. Committed batches are
	// unaffected and the failed batch is retryable on the next run.
	ErrStoreWrite = errors.New("vector store write failed")

	// ErrScopeViolation means a delete filter lacked a scope root term. It is
	// a programming-invariant failure and the delete is never executed.
	ErrScopeViolation = errors.New("delete filter missing scope root")
)
