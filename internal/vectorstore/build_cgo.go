//go:build sqlite_vec
// +build sqlite_vec

package vectorstore

// Compiled when building with CGO and the sqlite_vec tag. Registers
// go-sqlite3 plus the sqlite-vec extension, giving the vec0 virtual
// table and vec_distance_cosine the optimized Query path needs.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...

import (
	"database/sql"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
	sql.Register("sqlite3_vec", &sqlite3.SQLiteDriver{})
}

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3_vec"

	// VectorExtensionAvailable indicates the vec0 virtual table and
	// vec_distance_cosine are usable.
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
