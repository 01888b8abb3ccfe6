// Package types defines the shared domain types for the sync engine: the
// content-addressed chunk record, the per-file change classification, and
// the error taxonomy used across the ingestion pipeline.
package types
