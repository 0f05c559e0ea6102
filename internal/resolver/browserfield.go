package resolver

// Browser field semantics follow https://github.com/defunctzombie/package-browser-field-spec

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

const maxBrowserRemapDepth = 16

// BrowserMapping is the outcome of a browser field lookup: either a
// replacement target or an explicit externalization (`false`).
type BrowserMapping struct {
	Target   string
	External bool
}

// ResolveBrowserField looks subpath up in a manifest's browser value. The
// boolean is false when the field has no mapping for subpath, in which case
// normal resolution continues.
func ResolveBrowserField(browser any, subpath string) (BrowserMapping, bool) {
	switch typed := browser.(type) {
	case string:
		if subpath == "." {
			return browserValue(typed)
		}
	case *jsonObject:
		if subpath == "." {
			value, _ := typed.get(".")
			return browserValue(value)
		}
		return mapWithBrowserField(subpath, typed)
	}
	return BrowserMapping{}, false
}

// mapWithBrowserField matches keys that name the same path as subpath, up to
// a .js, /index or /index.js suffix on either side. The first matching key
// in declaration order wins.
func mapWithBrowserField(subpath string, browser *jsonObject) (BrowserMapping, bool) {
	normalized := path.Clean(subpath)
	for _, key := range browser.keys {
		if samePathModuloSuffix(normalized, path.Clean(key)) {
			return browserValue(browser.values[key])
		}
	}
	return BrowserMapping{}, false
}

var browserKeySuffixes = []string{".js", "/index", "/index.js"}

func samePathModuloSuffix(a, b string) bool {
	if a == b {
		return true
	}
	for _, suffix := range browserKeySuffixes {
		if equalWithoutSuffix(a, b, suffix) || equalWithoutSuffix(b, a, suffix) {
			return true
		}
	}
	return false
}

func equalWithoutSuffix(subpath, key, suffix string) bool {
	trimmed, ok := strings.CutSuffix(key, suffix)
	return ok && trimmed == subpath
}

func browserValue(value any) (BrowserMapping, bool) {
	switch typed := value.(type) {
	case string:
		if typed != "" {
			return BrowserMapping{Target: typed}, true
		}
	case bool:
		if !typed {
			return BrowserMapping{External: true}, true
		}
	}
	return BrowserMapping{}, false
}

func (c *call) browserExternal(id string) *Result {
	if c.opts.IsProduction {
		return &Result{ID: BrowserExternalID}
	}
	return &Result{ID: BrowserExternalID + ":" + id}
}

// tryBrowserFieldMapping remaps a resolved file through the browser field of
// the package that contains it. rawID is the specifier that produced resolved.
func (c *call) tryBrowserFieldMapping(resolved *Result, rawID string) (*Result, error) {
	if !c.opts.hasMainField("browser") || resolved.External || IsSentinelID(resolved.ID) {
		return resolved, nil
	}
	scope, ok := LookupPackageScope(filepath.Dir(resolved.ID))
	if !ok {
		return resolved, nil
	}
	return c.mapThroughScope(scope, resolved.ID, resolved, rawID)
}

// tryBrowserFieldCandidate applies the browser field to a path that did not
// resolve on disk, so a `false` mapping for a missing file still externalizes.
func (c *call) tryBrowserFieldCandidate(candidate, rawID string) (*Result, error) {
	if !c.opts.hasMainField("browser") {
		return nil, nil
	}
	scope, ok := LookupPackageScope(filepath.Dir(candidate))
	if !ok {
		return nil, nil
	}
	return c.mapThroughScope(scope, candidate, nil, rawID)
}

func (c *call) mapThroughScope(scope, file string, fallback *Result, rawID string) (*Result, error) {
	pkg, err := ReadPackageJSON(scope)
	if err != nil || pkg == nil {
		return fallback, err
	}
	browser, ok := pkg.Browser()
	if !ok {
		return fallback, nil
	}
	rel, err := filepath.Rel(scope, file)
	if err != nil {
		return fallback, nil
	}

	mapping, ok := ResolveBrowserField(browser, "./"+filepath.ToSlash(rel))
	if !ok {
		return fallback, nil
	}
	if mapping.External {
		c.log.V(1).Info("browser field externalized module", "id", rawID, "package", scope)
		return c.browserExternal(rawID), nil
	}
	return c.resolveBrowserTarget(scope, mapping.Target, file)
}

// tryBareBrowserFieldMapping remaps a bare specifier through the browser
// field of the importer's own package, e.g. {"module-a": "./shims/a.js"}.
func (c *call) tryBareBrowserFieldMapping(id, importer string) (*Result, error) {
	if !c.opts.hasMainField("browser") {
		return nil, nil
	}
	scope, ok := LookupPackageScope(filepath.Dir(importer))
	if !ok {
		return nil, nil
	}
	pkg, err := ReadPackageJSON(scope)
	if err != nil || pkg == nil {
		return nil, err
	}
	browser, ok := pkg.Browser()
	if !ok {
		return nil, nil
	}

	mapping, ok := ResolveBrowserField(browser, id)
	if !ok {
		return nil, nil
	}
	if mapping.External {
		return c.browserExternal(id), nil
	}
	if mapping.Target == id {
		return nil, nil
	}
	return c.resolveBrowserTarget(scope, mapping.Target, id)
}

// resolveBrowserTarget resolves a browser field value: relative values
// against the package directory, bare values through package resolution.
func (c *call) resolveBrowserTarget(scope, target, from string) (*Result, error) {
	if Classify(target) == KindBare {
		if c.browserDepth >= maxBrowserRemapDepth {
			return nil, invalidf("\"browser\" field of %s remaps %s in a cycle.", quote(scope), quote(from))
		}
		c.browserDepth++
		defer func() { c.browserDepth-- }()

		resolved, err := c.packageResolve(target, filepath.Join(scope, manifestName), false)
		if err != nil || resolved != nil {
			return resolved, err
		}
		return nil, invalidf("\"browser\" field of %s mapped %s to %s but that package could not be resolved.", quote(scope), quote(from), quote(target))
	}

	absolute := filepath.Join(scope, filepath.FromSlash(target))
	if fsprobe.IsFile(absolute) {
		return &Result{ID: absolute}, nil
	}
	if file := c.loadAsFile(absolute); file != "" {
		return &Result{ID: file}, nil
	}
	if fsprobe.IsDir(absolute) {
		if index := c.loadIndex(absolute); index != "" {
			return &Result{ID: index}, nil
		}
	}
	return nil, invalidf("\"browser\" field of %s mapped %s to %s but that doesn't resolve to any file.", quote(scope), quote(from), quote(absolute))
}
