package structured

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	nameFieldConstant           = "name"
	receiverFieldConstant       = "receiver"
	traitFieldConstant          = "trait"
	typeFieldConstant           = "type"
	implementationKindConstant  = "impl_item"
	methodKindConstant          = "method_declaration"
	keySeparatorConstant        = ":"
	occurrenceSeparatorConstant = "#"
	nameSearchDepthConstant     = 2
)

// singletonKinds appear at most once per file and are keyed by kind alone.
var singletonKinds = map[string]struct{}{
	"package_clause":     {},
	"import_declaration": {},
}

// declaration is one top-level named node of a parsed artifact.
type declaration struct {
	key  string
	text string
}

// collectDeclarations keys every top-level named node by kind and declared name, falling back to
// the node text, and disambiguates repeated keys by occurrence.
func collectDeclarations(root *tree_sitter.Node, source []byte) []declaration {
	occurrences := make(map[string]int)
	declarations := make([]declaration, 0, root.NamedChildCount())
	for index := uint(0); index < root.NamedChildCount(); index++ {
		node := root.NamedChild(index)
		if node == nil {
			continue
		}
		text := strings.TrimSpace(node.Utf8Text(source))
		baseKey := node.Kind() + keySeparatorConstant + declaredName(node, source, text)
		occurrences[baseKey]++
		key := baseKey
		if occurrences[baseKey] > 1 {
			key = baseKey + occurrenceSeparatorConstant + strconv.Itoa(occurrences[baseKey])
		}
		declarations = append(declarations, declaration{key: key, text: text})
	}
	return declarations
}

func declaredName(node *tree_sitter.Node, source []byte, fallback string) string {
	if _, singleton := singletonKinds[node.Kind()]; singleton {
		return ""
	}
	switch node.Kind() {
	case methodKindConstant:
		if name := fieldText(node, nameFieldConstant, source); len(name) > 0 {
			return fieldText(node, receiverFieldConstant, source) + name
		}
	case implementationKindConstant:
		return fieldText(node, traitFieldConstant, source) + keySeparatorConstant + fieldText(node, typeFieldConstant, source)
	}
	if name := searchName(node, source, nameSearchDepthConstant); len(name) > 0 {
		return name
	}
	return fallback
}

func searchName(node *tree_sitter.Node, source []byte, depth int) string {
	if name := fieldText(node, nameFieldConstant, source); len(name) > 0 {
		return name
	}
	if depth == 0 {
		return ""
	}
	for index := uint(0); index < node.NamedChildCount(); index++ {
		child := node.NamedChild(index)
		if child == nil {
			continue
		}
		if name := searchName(child, source, depth-1); len(name) > 0 {
			return name
		}
	}
	return ""
}

func fieldText(node *tree_sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Utf8Text(source)
}
