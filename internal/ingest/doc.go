// Package ingest implements the incremental sync pipeline that keeps a
// vector store aligned with a directory tree.
//
// A run reconciles disk against the metadata already in the store, in
// stages:
//
//  1. Scan: walk the scope root and stat every supported file.
//  2. Detect: classify each file as unchanged, new, modified, moved,
//     refreshed, or deleted. An exact mtime match skips the file without
//     reading it; everything else is hashed. A new path whose whole-file
//     hash matches a stored file that vanished from disk is a move and
//     costs one metadata update, never a re-embed.
//  3. Chunk: extract text and split it into overlapping windows. A chunk's
//     id is the hash of its text, so identical text anywhere maps to the
//     same id.
//  4. Dedup: drop chunks whose id already has a vector, in this run or any
//     earlier one.
//  5. Index: embed and upsert the remainder in strictly sequential batches,
//     one embedding call and one upsert per batch. A mid-run failure
//     leaves completed batches durable; the next run finishes the rest.
//  6. Cleanup: delete chunks of vanished files and stale chunks of
//     modified files, always filtered by the scope root.
//
// The store is the only persisted state. There is no sidecar database and
// nothing to migrate or repair; deleting the store and re-running rebuilds
// everything.
package ingest
