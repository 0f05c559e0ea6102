package resolver

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Kind classifies an import specifier for dispatch.
type Kind int

const (
	KindBare Kind = iota
	KindRelative
	KindAbsolute
	KindURL
	KindBuiltin
	KindImports
)

func (k Kind) String() string {
	switch k {
	case KindRelative:
		return "relative"
	case KindAbsolute:
		return "absolute"
	case KindURL:
		return "url"
	case KindBuiltin:
		return "builtin"
	case KindImports:
		return "imports"
	default:
		return "bare"
	}
}

var (
	schemePattern      = regexp.MustCompile(`^\w+:`)
	drivePattern       = regexp.MustCompile(`^[A-Za-z]:[/\\]`)
	packageNamePattern = regexp.MustCompile(`^((?:@[^/\\%]+/)?[^./\\%][^/\\%]*)(/.*)?$`)
	bareWordPattern    = regexp.MustCompile(`^\w`)
)

// Classify returns the dispatch kind of id. The first matching rule wins.
// Drive-letter paths such as C:/x are absolute on every platform so they
// never fall through to the URL scheme rule.
func Classify(id string) Kind {
	switch {
	case strings.HasPrefix(id, "//"):
		return KindURL
	case id == "." || id == ".." || strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../"):
		return KindRelative
	case strings.HasPrefix(id, "/") || drivePattern.MatchString(id) || filepath.VolumeName(id) != "":
		return KindAbsolute
	case strings.HasPrefix(id, "#"):
		return KindImports
	case strings.HasPrefix(id, "node:"):
		return KindBuiltin
	case schemePattern.MatchString(id):
		return KindURL
	default:
		return KindBare
	}
}

// parsePackageName splits a bare specifier into the package name and a
// subpath that keeps its leading "." ("." for the package root).
func parsePackageName(id string) (string, string, bool) {
	match := packageNamePattern.FindStringSubmatch(id)
	if match == nil || match[1] == "" {
		return "", "", false
	}
	return match[1], "." + match[2], true
}

// splitPostfix separates a trailing ?query or #hash, whichever comes first.
// A fragment at index 0 is part of the specifier, not a postfix.
func splitPostfix(id string) (string, string) {
	index := strings.IndexAny(id, "?#")
	if index <= 0 {
		return id, ""
	}
	return id[:index], id[index:]
}

func isExternalURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") || strings.HasPrefix(id, "//")
}

func isDataURL(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), "data:")
}
