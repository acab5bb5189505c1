package parser

import (
	"github.com/smacker/go-tree-sitter/javascript"
)

// RegisterJavaScript wires the JavaScript tree-sitter grammar into r.
func RegisterJavaScript(r *Registry) {
	spec := LanguageSpec{
		Language: "javascript",
		Grammar:  javascript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (identifier) @name) @chunk
			(method_definition name: (property_identifier) @name) @chunk
			(export_statement (function_declaration name: (identifier) @name)) @chunk
			(export_statement (class_declaration name: (identifier) @name)) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
		`,
		ClassNodeTypes:      map[string]bool{"class_declaration": true},
		MethodNodeTypes:     map[string]bool{"method_definition": true},
		LineCommentPrefixes: []string{"//", "/**", "*/", "*"},
	}
	r.Register("javascript", []string{".js", ".jsx", ".mjs", ".cjs"}, NewTreeSitterParser(spec))
}
