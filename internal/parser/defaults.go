package parser

// NewDefaultRegistry builds the Registry the Indexer runs against: Go
// via go/ast, Python/JavaScript/TypeScript/HTML via tree-sitter,
// Markdown/plain-text via heading-section chunking, and PHP/Dart/Ruby
// (plus any unrecognised extension) via the regex fallback chunker.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("go", []string{".go"}, NewGoParser())

	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterHTML(r)

	fallback := NewFallbackParser()
	r.SetFallback(fallback)
	r.Register("php", []string{".php"}, fallback)
	r.Register("dart", []string{".dart"}, fallback)
	r.Register("ruby", []string{".rb"}, fallback)

	r.SetTextParser(NewMarkdownParser(), []string{".md", ".markdown"})
	r.SetTextParser(NewPlainTextParser(), []string{".txt"})

	return r
}
