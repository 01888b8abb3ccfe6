// Package searcher implements query-time retrieval: embed the query text,
// run a similarity search against the vector store, optionally scoped to
// one indexed folder. Recent queries are served from an LRU cache.
package searcher
