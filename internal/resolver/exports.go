package resolver

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

// mapTarget is a matched exports/imports target. Bare targets are only
// produced for imports maps.
type mapTarget struct {
	value string
	bare  bool
}

// matchExports finds the target of subpath ("." or "./x") in an exports value.
func matchExports(exports any, subpath string, conditions []string) (mapTarget, bool) {
	object := normalizeExports(exports)
	if object == nil {
		return mapTarget{}, false
	}
	return matchMapEntry(object, subpath, conditions, false)
}

// matchImports finds the target of a "#name" specifier in an imports value.
func matchImports(imports any, id string, conditions []string) (mapTarget, bool) {
	object, ok := imports.(*jsonObject)
	if !ok {
		return mapTarget{}, false
	}
	return matchMapEntry(object, id, conditions, true)
}

// normalizeExports expands the "." shorthands: a string, an array, or a
// conditions object whose keys do not start with ".".
func normalizeExports(exports any) *jsonObject {
	switch typed := exports.(type) {
	case string, []any:
		return &jsonObject{keys: []string{"."}, values: map[string]any{".": typed}}
	case *jsonObject:
		if len(typed.keys) == 0 || strings.HasPrefix(typed.keys[0], ".") {
			return typed
		}
		return &jsonObject{keys: []string{"."}, values: map[string]any{".": typed}}
	default:
		return nil
	}
}

func matchMapEntry(object *jsonObject, key string, conditions []string, allowBare bool) (mapTarget, bool) {
	if value, ok := object.get(key); ok && !strings.Contains(key, "*") {
		return resolveMapTarget(value, "", conditions, allowBare)
	}

	if patternKey, match, ok := bestPatternKey(object.keys, key); ok {
		value, _ := object.get(patternKey)
		return resolveMapTarget(value, match, conditions, allowBare)
	}

	if folderKey, ok := bestFolderKey(object.keys, key); ok {
		value, _ := object.get(folderKey)
		target, ok := resolveMapTarget(value, "", conditions, allowBare)
		if !ok || !strings.HasSuffix(target.value, "/") {
			return mapTarget{}, false
		}
		target.value += strings.TrimPrefix(key, folderKey)
		return target, true
	}
	return mapTarget{}, false
}

// bestPatternKey picks the single-"*" key matching key with the longest
// base, then the longest key overall.
func bestPatternKey(keys []string, key string) (string, string, bool) {
	bestKey, bestMatch := "", ""
	found := false
	for _, candidate := range keys {
		star := strings.Index(candidate, "*")
		if star < 0 || strings.Count(candidate, "*") != 1 {
			continue
		}
		base, trailer := candidate[:star], candidate[star+1:]
		if !strings.HasPrefix(key, base) || key == base {
			continue
		}
		if trailer != "" && (!strings.HasSuffix(key, trailer) || len(key) < len(candidate)) {
			continue
		}
		if found && !patternKeyLess(bestKey, candidate) {
			continue
		}
		bestKey = candidate
		bestMatch = key[len(base) : len(key)-len(trailer)]
		found = true
	}
	return bestKey, bestMatch, found
}

// patternKeyLess reports whether candidate should replace current.
func patternKeyLess(current, candidate string) bool {
	currentBase := strings.Index(current, "*")
	candidateBase := strings.Index(candidate, "*")
	if candidateBase != currentBase {
		return candidateBase > currentBase
	}
	return len(candidate) > len(current)
}

func bestFolderKey(keys []string, key string) (string, bool) {
	best := ""
	for _, candidate := range keys {
		if !strings.HasSuffix(candidate, "/") || !strings.HasPrefix(key, candidate) {
			continue
		}
		if len(candidate) > len(best) {
			best = candidate
		}
	}
	return best, best != ""
}

func resolveMapTarget(value any, patternMatch string, conditions []string, allowBare bool) (mapTarget, bool) {
	switch typed := value.(type) {
	case string:
		return stringMapTarget(typed, patternMatch, allowBare)
	case []any:
		for _, item := range typed {
			if target, ok := resolveMapTarget(item, patternMatch, conditions, allowBare); ok {
				return target, true
			}
		}
	case *jsonObject:
		for _, condition := range typed.keys {
			if condition != "default" && !slices.Contains(conditions, condition) {
				continue
			}
			if target, ok := resolveMapTarget(typed.values[condition], patternMatch, conditions, allowBare); ok {
				return target, true
			}
		}
	}
	return mapTarget{}, false
}

func stringMapTarget(target, patternMatch string, allowBare bool) (mapTarget, bool) {
	if patternMatch != "" {
		target = strings.ReplaceAll(target, "*", patternMatch)
	}
	if !strings.HasPrefix(target, "./") {
		if allowBare && Classify(target) == KindBare {
			return mapTarget{value: target, bare: true}, true
		}
		return mapTarget{}, false
	}
	for _, segment := range strings.Split(target[2:], "/") {
		if segment == ".." || segment == "node_modules" {
			return mapTarget{}, false
		}
	}
	return mapTarget{value: target}, true
}

// resolvePackageExports resolves subpath through the exports field of the
// package at pkgDir. Exports are exhaustive: a subpath missing from the map
// is an error, never a fallthrough.
func resolvePackageExports(pkgDir string, pkg *PackageJSON, subpath string, conditions []string) (*Result, error) {
	exports, _ := pkg.Exports()
	target, ok := matchExports(exports, subpath, conditions)
	if !ok {
		return nil, invalidf("%s is not exported from %s.", quote(subpath), quote(pkgDir))
	}

	resolved := filepath.Join(pkgDir, filepath.FromSlash(target.value))
	if !fsprobe.Exists(resolved) {
		return nil, invalidf("exports field of %s resolves %s to %s but that file doesn't exist.", quote(pkgDir), quote(subpath), quote(resolved))
	}
	return &Result{ID: resolved}, nil
}
