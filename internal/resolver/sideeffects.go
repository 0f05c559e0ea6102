package resolver

// sideEffects semantics follow https://webpack.js.org/guides/tree-shaking/#mark-the-file-as-side-effect-free

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// ResolveSideEffects derives the tree-shaking policy of file from the
// sideEffects field of its package. Files matching a side-effect glob get
// SideEffectsNoTreeshake, others SideEffectsFalse; SideEffectsUnknown means
// the package declares nothing usable.
func ResolveSideEffects(file string) SideEffects {
	scope, ok := LookupPackageScope(filepath.Dir(file))
	if !ok {
		return SideEffectsUnknown
	}
	pkg, err := ReadPackageJSON(scope)
	if err != nil || pkg == nil {
		return SideEffectsUnknown
	}
	field, ok := pkg.SideEffects()
	if !ok {
		return SideEffectsUnknown
	}

	hasSideEffects, ok := sideEffectsMatcher(scope, field)
	if !ok {
		return SideEffectsUnknown
	}
	if hasSideEffects(filepath.ToSlash(file)) {
		return SideEffectsNoTreeshake
	}
	return SideEffectsFalse
}

func sideEffectsMatcher(pkgDir string, field any) (func(string) bool, bool) {
	switch typed := field.(type) {
	case bool:
		return func(string) bool { return typed }, true
	case string:
		return compileSideEffectsFilter(pkgDir, []string{typed}), true
	case []any:
		patterns := make([]string, 0, len(typed))
		for _, item := range typed {
			if pattern, ok := item.(string); ok {
				patterns = append(patterns, pattern)
			}
		}
		return compileSideEffectsFilter(pkgDir, patterns), true
	default:
		return nil, false
	}
}

// compileSideEffectsFilter compiles patterns rooted at pkgDir. A pattern
// without a slash matches at any depth. Patterns that fail to compile are
// skipped.
func compileSideEffectsFilter(pkgDir string, patterns []string) func(string) bool {
	base := filepath.ToSlash(pkgDir)
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := glob.Compile(sideEffectsPattern(base, pattern), '/')
		if err != nil {
			continue
		}
		globs = append(globs, compiled)
	}
	return func(file string) bool {
		for _, g := range globs {
			if g.Match(file) {
				return true
			}
		}
		return false
	}
}

// sideEffectsPattern roots pattern at base. base is quoted so directory
// names such as "[id]" or "{app}" match literally.
func sideEffectsPattern(base, pattern string) string {
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	if strings.HasPrefix(pattern, "**") || path.IsAbs(pattern) {
		return pattern
	}
	return path.Join(glob.QuoteMeta(base), pattern)
}

// appendSideEffects annotates a file result with its package's policy.
func (c *call) appendSideEffects(resolved *Result) *Result {
	if resolved == nil || resolved.External || IsSentinelID(resolved.ID) {
		return resolved
	}
	if policy := ResolveSideEffects(resolved.ID); policy != SideEffectsUnknown {
		resolved.ModuleSideEffects = policy
	}
	return resolved
}
