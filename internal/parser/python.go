package parser

import (
	"github.com/smacker/go-tree-sitter/python"
)

// RegisterPython wires the Python tree-sitter grammar into r for .py/.pyi
// files.
func RegisterPython(r *Registry) {
	spec := LanguageSpec{
		Language: "python",
		Grammar:  python.GetLanguage(),
		Query: `
			(function_definition name: (identifier) @name) @chunk
			(class_definition name: (identifier) @name) @chunk
			(decorated_definition definition: (function_definition name: (identifier) @name)) @chunk
			(decorated_definition definition: (class_definition name: (identifier) @name)) @chunk
		`,
		ClassNodeTypes:       map[string]bool{"class_definition": true},
		LineCommentPrefixes:  []string{"#"},
		DocstringAfterHeader: true,
	}
	r.Register("python", []string{".py", ".pyi"}, NewTreeSitterParser(spec))
}
