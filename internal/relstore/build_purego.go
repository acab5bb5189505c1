//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package relstore

// Compiled without CGO, or with the purego tag: pure-Go SQLite.
//
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

// DriverName is the SQLite driver to use.
const DriverName = "sqlite"
