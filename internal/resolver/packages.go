package resolver

import (
	"path/filepath"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

// packageResolve resolves a bare specifier: self reference, the importer's
// browser map, node_modules, builtins, then missing optional peers.
func (c *call) packageResolve(id, importer string, external bool) (*Result, error) {
	if id == "" {
		return nil, nil
	}
	if _, only := c.opts.NodeBuiltin.(onlyBuiltin); only && IsNodeBuiltin(id) {
		return &Result{ID: id, External: true}, nil
	}

	pkgName, subpath, ok := parsePackageName(id)
	if !ok {
		return nil, nil
	}

	if resolved, err := c.packageSelfResolve(pkgName, subpath, importer); err != nil || resolved != nil {
		return resolved, err
	}
	if resolved, err := c.tryBareBrowserFieldMapping(id, importer); err != nil || resolved != nil {
		return resolved, err
	}
	if resolved, err := c.loadNodeModules(pkgName, subpath, importer, external); err != nil || resolved != nil {
		return resolved, err
	}

	if IsNodeBuiltin(id) {
		return c.resolveNodeBuiltin(id, importer)
	}
	if resolved := c.optionalPeerSentinel(pkgName, importer); resolved != nil {
		return resolved, nil
	}
	return nil, nil
}

// packageSelfResolve lets a package import itself by name through its own
// exports field.
func (c *call) packageSelfResolve(pkgName, subpath, importer string) (*Result, error) {
	scope, ok := LookupPackageScope(filepath.Dir(importer))
	if !ok {
		return nil, nil
	}
	pkg, err := ReadPackageJSON(scope)
	if err != nil || pkg == nil {
		return nil, err
	}
	if _, ok := pkg.Exports(); !ok || pkg.Name() != pkgName {
		return nil, nil
	}
	return resolvePackageExports(scope, pkg, subpath, c.conditions)
}

// packageImportsResolve resolves a "#name" specifier through the imports
// field of the importer's package.
func (c *call) packageImportsResolve(id, importer string) (*Result, error) {
	if id == "#" || strings.HasPrefix(id, "#/") {
		return nil, nil
	}
	scope, ok := LookupPackageScope(filepath.Dir(importer))
	if !ok {
		return nil, invalidf("Package import specifier %s imported from %s has no package.json in scope.", quote(id), quote(importer))
	}
	pkg, err := ReadPackageJSON(scope)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, invalidf("Package import specifier %s imported from %s has no package.json in scope.", quote(id), quote(importer))
	}

	imports, _ := pkg.Imports()
	target, ok := matchImports(imports, id, c.conditions)
	if !ok {
		return nil, invalidf("Package import specifier %s is not defined in package %s.", quote(id), quote(scope))
	}

	if target.bare {
		resolved, err := c.packageResolve(target.value, filepath.Join(scope, manifestName), false)
		if err != nil || resolved != nil {
			return resolved, err
		}
		return nil, invalidf("imports field of %s maps %s to %s but that package could not be resolved.", quote(scope), quote(id), quote(target.value))
	}

	resolved := filepath.Join(scope, filepath.FromSlash(target.value))
	if !fsprobe.Exists(resolved) {
		return nil, invalidf("imports field of %s resolves %s to %s but that file doesn't exist.", quote(scope), quote(id), quote(resolved))
	}
	return &Result{ID: resolved}, nil
}

func (c *call) resolveNodeBuiltin(id, importer string) (*Result, error) {
	policy := c.opts.NodeBuiltin
	if policy == nil {
		policy = AllowPolyfill
	}
	return policy.ResolveBuiltin(c.ctx, id, importer)
}

// optionalPeerSentinel returns the optional-peer sentinel when the package
// owning importer declares pkgName as an optional peer dependency.
func (c *call) optionalPeerSentinel(pkgName, importer string) *Result {
	scope, ok := LookupPackageScope(filepath.Dir(importer))
	if !ok {
		return nil
	}
	pkg, err := ReadPackageJSON(scope)
	if err != nil || pkg == nil || !pkg.IsOptionalPeer(pkgName) {
		return nil
	}
	parent := pkg.Name()
	if parent == "" {
		parent = filepath.Base(scope)
	}
	return &Result{ID: OptionalPeerDepID + ":" + pkgName + ":" + parent}
}

// resolveNestedSelectedPackages rewrites "a > b > c" into c imported from
// inside b, where b is found from inside a. ok is false when any package in
// the chain is missing.
func (c *call) resolveNestedSelectedPackages(id, importer string) (string, string, bool, error) {
	last := strings.LastIndex(id, ">")
	nestedPath := strings.TrimSpace(id[last+1:])
	baseDir := filepath.Dir(importer)

	for _, name := range strings.Split(id[:last], ">") {
		name = strings.TrimSpace(name)
		found := false
		for nodeModules := range nodeModulesPaths(baseDir) {
			pkgDir := filepath.Join(nodeModules, filepath.FromSlash(name))
			pkg, err := ReadPackageJSON(pkgDir)
			if err != nil {
				return "", "", false, err
			}
			if pkg != nil {
				baseDir = pkgDir
				found = true
				break
			}
		}
		if !found {
			c.log.V(1).Info("nested package not found", "id", id, "package", name)
			return "", "", false, nil
		}
	}
	return nestedPath, filepath.Join(baseDir, manifestName), true, nil
}
