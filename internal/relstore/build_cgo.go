//go:build sqlite_vec
// +build sqlite_vec

package relstore

// relationships.db has no need for the vec0 extension, but is built
// under the same tag as internal/vectorstore so a single build
// selects one driver family across the whole ProjectIndex.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the SQLite driver to use.
const DriverName = "sqlite3"
