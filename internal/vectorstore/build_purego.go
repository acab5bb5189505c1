//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package vectorstore

// Compiled without CGO, or with the purego tag: pure-Go SQLite, no
// sqlite-vec extension. Query falls back to Go-computed cosine
// similarity (queryFallback).
//
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates the vec0 virtual table and
	// vec_distance_cosine are usable.
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
