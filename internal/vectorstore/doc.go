// Package vectorstore persists embedded chunks together with the sync
// metadata that drives change detection. Two backends implement the Store
// interface: an embedded SQLite database and a remote Qdrant collection.
// There is no separate state file; whatever the store holds is the truth
// the next run reconciles against.
package vectorstore
