//go:build !cgo_sqlite
// +build !cgo_sqlite

package vectorstore

// This file is compiled when building without CGO. It uses a pure Go SQLite
// implementation: no C compiler required, cross-platform compilation,
// slightly slower vector math.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
