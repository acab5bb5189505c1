// Package types defines the core domain types shared across the
// indexing and search pipeline: chunks, quality metrics, file records,
// relationships, sentinel errors, and search results.
package types
