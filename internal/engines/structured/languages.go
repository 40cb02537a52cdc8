package structured

import (
	"path/filepath"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageRegistry maps file extensions to tree-sitter grammars.
type languageRegistry map[string]*tree_sitter.Language

func newLanguageRegistry() languageRegistry {
	return languageRegistry{
		".go":  tree_sitter.NewLanguage(tree_sitter_go.Language()),
		".py":  tree_sitter.NewLanguage(tree_sitter_python.Language()),
		".rs":  tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		".ts":  tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		".tsx": tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
	}
}

func (registry languageRegistry) resolve(path string) (*tree_sitter.Language, bool) {
	language, exists := registry[strings.ToLower(filepath.Ext(path))]
	return language, exists
}

func (registry languageRegistry) extensions() []string {
	extensions := make([]string, 0, len(registry))
	for extension := range registry {
		extensions = append(extensions, extension)
	}
	sort.Strings(extensions)
	return extensions
}
