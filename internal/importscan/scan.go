// Package importscan extracts import specifiers from JavaScript and
// TypeScript sources so they can be resolved from the file that wrote them.
package importscan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	tsxlang "github.com/smacker/go-tree-sitter/typescript/tsx"
	tslang "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

type Kind string

const (
	KindStatic   Kind = "static"
	KindReexport Kind = "reexport"
	KindDynamic  Kind = "dynamic"
	KindRequire  Kind = "require"
)

const maxParseErrorFiles = 5

// Import is one specifier occurrence. File is absolute; Line and Column
// are 1-based and point at the specifier string.
type Import struct {
	Specifier string
	File      string
	Line      int
	Column    int
	Kind      Kind
}

type Result struct {
	Imports  []Import
	Files    int
	Warnings []string
}

var supportedExtensions = map[string]bool{
	".js":  true,
	".cjs": true,
	".mjs": true,
	".jsx": true,
	".ts":  true,
	".mts": true,
	".cts": true,
	".tsx": true,
}

var skipDirectories = map[string]bool{
	".git":         true,
	".idea":        true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"coverage":     true,
	"vendor":       true,
	".next":        true,
	".turbo":       true,
}

type scanState struct {
	parser          *sourceParser
	result          *Result
	parseErrorCount int
	parseErrorFiles []string
}

// Scan collects imports from every target. Directory targets are walked,
// skipping dependency and build output directories. File targets must
// have a script extension.
func Scan(ctx context.Context, targets []string) (Result, error) {
	result := Result{}
	if len(targets) == 0 {
		return result, errors.New("no scan targets")
	}

	state := scanState{parser: newSourceParser(), result: &result}
	for _, target := range targets {
		abs, err := filepath.Abs(target)
		if err != nil {
			return result, fmt.Errorf("resolve scan target: %w", err)
		}
		info, ok := fsprobe.Stat(abs)
		if !ok {
			return result, fmt.Errorf("scan target not found: %s", target)
		}
		if !info.IsDir() {
			if err := state.scanFile(ctx, filepath.Dir(abs), abs); err != nil {
				return result, err
			}
			continue
		}
		if err := state.scanDir(ctx, abs); err != nil {
			return result, err
		}
	}

	if result.Files == 0 {
		result.Warnings = append(result.Warnings, "no JS/TS files found to scan")
	}
	if state.parseErrorCount > 0 {
		warning := fmt.Sprintf("parse errors in %d file(s)", state.parseErrorCount)
		if len(state.parseErrorFiles) > 0 {
			warning = fmt.Sprintf("%s: %s", warning, strings.Join(state.parseErrorFiles, ", "))
		}
		result.Warnings = append(result.Warnings, warning)
	}
	return result, nil
}

func (s *scanState) scanDir(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			if path != dir && skipDirectories[entry.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !isSupportedFile(path) {
			return nil
		}
		return s.scanFile(ctx, dir, path)
	})
}

func (s *scanState) scanFile(ctx context.Context, root, path string) error {
	if !isSupportedFile(path) {
		return fmt.Errorf("unsupported source file: %s", path)
	}
	content, err := fsprobe.ReadFileUnder(root, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	tree, err := s.parser.Parse(ctx, path, content)
	if err != nil {
		return err
	}
	if tree == nil {
		return fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}

	if tree.RootNode().HasError() {
		s.parseErrorCount++
		if len(s.parseErrorFiles) < maxParseErrorFiles {
			s.parseErrorFiles = append(s.parseErrorFiles, path)
		}
	}
	s.result.Files++
	s.result.Imports = append(s.result.Imports, collectImports(tree.RootNode(), content, path)...)
	return nil
}

func isSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

type sourceParser struct {
	js  *sitter.Language
	ts  *sitter.Language
	tsx *sitter.Language
}

func newSourceParser() *sourceParser {
	return &sourceParser{
		js:  javascript.GetLanguage(),
		ts:  tslang.GetLanguage(),
		tsx: tsxlang.GetLanguage(),
	}
}

func (p *sourceParser) Parse(ctx context.Context, path string, content []byte) (*sitter.Tree, error) {
	lang, err := p.languageForPath(path)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	return parser.ParseCtx(ctx, nil, content)
}

func (p *sourceParser) languageForPath(path string) (*sitter.Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".js", ".cjs", ".mjs", ".jsx":
		return p.js, nil
	case ".ts", ".mts", ".cts":
		return p.ts, nil
	case ".tsx":
		return p.tsx, nil
	default:
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}
}

// collectImports returns the file's imports sorted by position.
func collectImports(root *sitter.Node, content []byte, path string) []Import {
	imports := make([]Import, 0)
	walkNode(root, func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement":
			imports = appendSource(imports, node.ChildByFieldName("source"), content, path, KindStatic)
		case "export_statement":
			imports = appendSource(imports, node.ChildByFieldName("source"), content, path, KindReexport)
		case "call_expression":
			if kind, ok := callKind(node, content); ok {
				imports = appendSource(imports, firstArgument(node), content, path, kind)
			}
		}
	})
	sort.SliceStable(imports, func(i, j int) bool {
		if imports[i].Line != imports[j].Line {
			return imports[i].Line < imports[j].Line
		}
		return imports[i].Column < imports[j].Column
	})
	return imports
}

func callKind(node *sitter.Node, content []byte) (Kind, bool) {
	function := node.ChildByFieldName("function")
	if function == nil {
		return "", false
	}
	switch {
	case function.Type() == "import":
		return KindDynamic, true
	case function.Type() == "identifier" && nodeText(function, content) == "require":
		return KindRequire, true
	default:
		return "", false
	}
}

func firstArgument(call *sitter.Node) *sitter.Node {
	arguments := call.ChildByFieldName("arguments")
	if arguments == nil || arguments.NamedChildCount() == 0 {
		return nil
	}
	return arguments.NamedChild(0)
}

// appendSource records node when it is a plain string literal. Computed
// specifiers cannot be resolved statically and are skipped.
func appendSource(imports []Import, node *sitter.Node, content []byte, path string, kind Kind) []Import {
	specifier, ok := stringLiteral(node, content)
	if !ok {
		return imports
	}
	return append(imports, Import{
		Specifier: specifier,
		File:      path,
		Line:      int(node.StartPoint().Row) + 1,
		Column:    int(node.StartPoint().Column) + 1,
		Kind:      kind,
	})
}

func stringLiteral(node *sitter.Node, content []byte) (string, bool) {
	if node == nil || node.Type() != "string" {
		return "", false
	}
	text := nodeText(node, content)
	if len(text) < 2 {
		return "", false
	}
	quote := text[0]
	if (quote != '"' && quote != '\'') || text[len(text)-1] != quote {
		return "", false
	}
	text = text[1 : len(text)-1]
	return text, text != ""
}

func walkNode(node *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		visit(child)
		walkNode(child, visit)
	}
}

func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}
