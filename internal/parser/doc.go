// Package parser extracts chunks and metadata from source files across
// multiple languages, dispatching by extension to a tagged-variant Parser.
//
// Go source is parsed with the standard library (go/parser, go/ast, go/token);
// other registered languages fall back to a tree-sitter grammar, and anything
// unrecognized falls back to coarse text chunking so indexing never stalls on
// an unsupported file type.
//
// # Basic Usage
//
//	registry := parser.NewDefaultRegistry()
//	chunks, err := registry.Parse("internal/foo/foo.go", content)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, c := range chunks {
//	    fmt.Printf("Found %s: %s\n", c.Kind, c.Name)
//	}
//
// # Features
//
// Chunk extraction includes:
//   - Functions and methods; a method's ParentID names its class chunk
//   - Classes; in Go, structs, interfaces and other named types, each
//     with a skeleton (signature, doc comment, method signatures)
//   - Documentation comments and docstrings
//   - Source positions as 1-indexed start and end lines
//
// Constants, variables, exported/unexported scope and column positions
// are not extracted.
//
// # Error Handling
//
// Parse does not fail on a syntactically invalid file: the Go and
// tree-sitter variants return a single root chunk holding the raw text
// with ParseQuality "invalid", so the file is still indexed. Only when a
// structural parser returns an error does Parse rerun the file through
// the regex fallback chunker.
//
// # Performance
//
// Parsers keep no per-file state, so one instance is shared by every
// worker: GoParser builds a fresh token.FileSet per call and
// TreeSitterParser a fresh tree-sitter parser, caching only its compiled
// query.
package parser
