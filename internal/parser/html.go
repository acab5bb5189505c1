package parser

import (
	"github.com/smacker/go-tree-sitter/html"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// RegisterHTML wires the HTML tree-sitter grammar into r. HTML has no
// function/class granularity, so each top-level element becomes a
// types.KindBlock chunk via LanguageSpec.DefaultKind; dedup collapses
// nested elements into their containing top-level tag.
func RegisterHTML(r *Registry) {
	spec := LanguageSpec{
		Language: "html",
		Grammar:  html.GetLanguage(),
		Query: `
			(element (start_tag (tag_name) @name)) @chunk
			(script_element) @chunk
			(style_element) @chunk
		`,
		DefaultKind: types.KindBlock,
	}
	r.Register("html", []string{".html", ".htm"}, NewTreeSitterParser(spec))
}
