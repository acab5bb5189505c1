package parser

import (
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// RegisterTypeScript wires the TypeScript tree-sitter grammar into r,
// extended with interface/type-alias captures so interfaces and type
// aliases are emitted as class-kind chunks.
func RegisterTypeScript(r *Registry) {
	spec := LanguageSpec{
		Language: "typescript",
		Grammar:  typescript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (type_identifier) @name) @chunk
			(method_definition name: (property_identifier) @name) @chunk
			(export_statement (function_declaration name: (identifier) @name)) @chunk
			(export_statement (class_declaration name: (type_identifier) @name)) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
			(interface_declaration name: (type_identifier) @name) @chunk
			(type_alias_declaration name: (type_identifier) @name) @chunk
		`,
		ClassNodeTypes: map[string]bool{
			"class_declaration":      true,
			"interface_declaration":  true,
			"type_alias_declaration": true,
		},
		MethodNodeTypes:     map[string]bool{"method_definition": true},
		LineCommentPrefixes: []string{"//", "/**", "*/", "*"},
	}
	r.Register("typescript", []string{".ts", ".tsx"}, NewTreeSitterParser(spec))
}
