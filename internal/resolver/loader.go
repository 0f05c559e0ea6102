package resolver

// File and directory loading follows https://nodejs.org/api/modules.html#all-together

import (
	"iter"
	"path/filepath"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

// loadAsFile tries p with every configured extension appended.
func (c *call) loadAsFile(p string) string {
	for _, ext := range c.opts.Extensions {
		candidate := p + ext
		if fsprobe.IsFile(candidate) {
			return candidate
		}
	}
	return ""
}

func (c *call) loadIndex(dir string) string {
	return c.loadAsFile(filepath.Join(dir, "index"))
}

// loadAsFileOrDirectory resolves p as an exact file, then with extensions,
// then as a package directory. Files are only considered when enableFile is set.
func (c *call) loadAsFileOrDirectory(p string, enableFile bool) (*Result, error) {
	info, exists := fsprobe.Stat(p)
	if exists && info.Mode().IsRegular() {
		if enableFile {
			return &Result{ID: p}, nil
		}
		return nil, nil
	}
	if enableFile {
		if file := c.loadAsFile(p); file != "" {
			return &Result{ID: file}, nil
		}
	}
	if exists && info.IsDir() {
		return c.loadAsDirectory(p)
	}
	return nil, nil
}

// loadAsDirectory resolves a directory through its manifest entry fields and
// falls back to an index file.
func (c *call) loadAsDirectory(dir string) (*Result, error) {
	pkg, err := ReadPackageJSON(dir)
	if err != nil {
		return nil, err
	}
	if pkg != nil {
		resolved, err := c.loadPackageEntry(dir, pkg)
		if err != nil || resolved != nil {
			return resolved, err
		}
	}
	if index := c.loadIndex(dir); index != "" {
		return &Result{ID: index}, nil
	}
	return nil, nil
}

func (c *call) loadPackageEntry(dir string, pkg *PackageJSON) (*Result, error) {
	entryField, entryValue := "", ""

	if c.opts.hasMainField("browser") {
		if browser, ok := pkg.Browser(); ok {
			if mapping, ok := ResolveBrowserField(browser, "."); ok && !mapping.External {
				browserEntry, err := c.loadMainField(dir, "browser", mapping.Target)
				if err != nil {
					return nil, err
				}
				moduleEntry := pkg.StringField("module")
				if c.opts.IsRequire || !c.opts.hasMainField("module") || moduleEntry == "" || moduleEntry == mapping.Target {
					return browserEntry, nil
				}
				// An ESM browser build wins over module.
				if content, ok := fsprobe.ReadFile(browserEntry.ID); ok && HasESMSyntax(c.ctx, browserEntry.ID, content) {
					return browserEntry, nil
				}
				entryField, entryValue = "module", moduleEntry
			}
		}
	}

	if entryField == "" {
		for _, field := range c.opts.MainFields {
			if field == "browser" {
				continue
			}
			if value := pkg.StringField(field); value != "" {
				entryField, entryValue = field, value
				break
			}
		}
	}
	if entryField == "" {
		return nil, nil
	}
	return c.loadMainField(dir, entryField, entryValue)
}

// loadMainField resolves a manifest entry value. A field that exists but
// points nowhere is an error.
func (c *call) loadMainField(dir, field, value string) (*Result, error) {
	joined := filepath.Join(dir, filepath.FromSlash(value))
	info, exists := fsprobe.Stat(joined)
	if exists && info.Mode().IsRegular() {
		return &Result{ID: joined}, nil
	}
	if file := c.loadAsFile(joined); file != "" {
		return &Result{ID: file}, nil
	}
	if exists && info.IsDir() {
		if index := c.loadIndex(joined); index != "" {
			return &Result{ID: index}, nil
		}
	}
	return nil, invalidf("%s field exists in package.json of %s but doesn't resolve to any file.", quote(field), quote(dir))
}

// nodeModulesPaths yields the node_modules directories visible from start,
// closest first. The sequence is lazy and can be ranged over repeatedly.
func nodeModulesPaths(start string) iter.Seq[string] {
	return func(yield func(string) bool) {
		dir := filepath.Clean(start)
		for {
			if filepath.Base(dir) != "node_modules" {
				if !yield(filepath.Join(dir, "node_modules")) {
					return
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				return
			}
			dir = parent
		}
	}
}

// loadNodeModules searches node_modules directories above importer for
// pkgName. The first directory holding the package wins; an exports field
// there is authoritative even when it rejects subpath.
func (c *call) loadNodeModules(pkgName, subpath, importer string, external bool) (*Result, error) {
	for nodeModules := range nodeModulesPaths(filepath.Dir(importer)) {
		if err := c.ctx.Err(); err != nil {
			return nil, err
		}
		pkgDir := filepath.Join(nodeModules, filepath.FromSlash(pkgName))

		pkg, err := ReadPackageJSON(pkgDir)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			if _, ok := pkg.Exports(); ok {
				resolved, err := resolvePackageExports(pkgDir, pkg, subpath, c.conditions)
				if err != nil {
					return nil, err
				}
				return c.nodeModulesHit(resolved, pkgName, subpath, pkgDir, external, true)
			}
		}

		resolved, err := c.loadAsFileOrDirectory(filepath.Join(pkgDir, filepath.FromSlash(subpath)), subpath != ".")
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			return c.nodeModulesHit(resolved, pkgName, subpath, pkgDir, external, false)
		}
	}
	return nil, nil
}

func (c *call) nodeModulesHit(resolved *Result, pkgName, subpath, pkgDir string, external, viaExports bool) (*Result, error) {
	rawID := pkgName + strings.TrimPrefix(subpath, ".")
	if !external {
		return c.tryBrowserFieldMapping(resolved, rawID)
	}

	c.log.V(1).Info("externalized package", "id", rawID, "file", resolved.ID)
	if viaExports || subpath == "." {
		return &Result{ID: rawID, External: true}, nil
	}
	// Deep imports keep the extension the file was found with.
	rel, err := filepath.Rel(pkgDir, resolved.ID)
	if err != nil {
		return &Result{ID: rawID, External: true}, nil
	}
	return &Result{ID: pkgName + "/" + filepath.ToSlash(rel), External: true}, nil
}
