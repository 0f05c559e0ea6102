package resolver

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	tsxlang "github.com/smacker/go-tree-sitter/typescript/tsx"
	tslang "github.com/smacker/go-tree-sitter/typescript/typescript"
)

type syntaxSniffer struct {
	js  *sitter.Language
	ts  *sitter.Language
	tsx *sitter.Language
}

var esmSniffer = &syntaxSniffer{
	js:  javascript.GetLanguage(),
	ts:  tslang.GetLanguage(),
	tsx: tsxlang.GetLanguage(),
}

func (s *syntaxSniffer) languageForPath(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return s.ts
	case ".tsx":
		return s.tsx
	default:
		return s.js
	}
}

// HasESMSyntax reports whether content uses import or export declarations
// or import.meta. Dynamic import() is valid in CommonJS and does not count.
func HasESMSyntax(ctx context.Context, path string, content []byte) bool {
	parser := sitter.NewParser()
	parser.SetLanguage(esmSniffer.languageForPath(path))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return false
	}
	found := false
	walkNode(tree.RootNode(), func(node *sitter.Node) bool {
		switch node.Type() {
		case "import_statement", "export_statement":
			found = true
		case "meta_property":
			found = strings.HasPrefix(nodeText(node, content), "import")
		case "member_expression":
			object := node.ChildByFieldName("object")
			property := node.ChildByFieldName("property")
			found = object != nil && object.Type() == "import" && nodeText(property, content) == "meta"
		}
		return !found
	})
	return found
}

// walkNode visits named descendants depth first until visit returns false.
func walkNode(node *sitter.Node, visit func(*sitter.Node) bool) bool {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if !visit(child) || !walkNode(child, visit) {
			return false
		}
	}
	return true
}

func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}
