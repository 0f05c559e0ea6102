package resolver

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

// defaultImporterName stands in for the importer when none is given, so
// resolution runs as if from a file in the root directory.
const defaultImporterName = "index.html"

// Resolver resolves import specifiers against the filesystem. It is safe
// for concurrent use; every call works on its own copy of the options.
type Resolver struct {
	options Options
}

// New returns a Resolver with overrides applied on top of Defaults.
func New(overrides Overrides) *Resolver {
	return &Resolver{options: overrides.Apply(Defaults())}
}

// With returns a Resolver whose base options are this resolver's with
// overrides applied. The receiver is unchanged.
func (r *Resolver) With(overrides Overrides) *Resolver {
	return &Resolver{options: overrides.Apply(r.options)}
}

// Options returns a copy of the resolver's base options.
func (r *Resolver) Options() Options {
	return r.options.clone()
}

// Resolve resolves id as imported from importer with the base options.
func (r *Resolver) Resolve(ctx context.Context, id, importer string) (*Result, error) {
	return r.ResolveWith(ctx, id, importer, Overrides{})
}

// ResolveWith resolves id with per-call overrides. It returns (nil, nil)
// when no strategy handles id, and an *InvalidError when one does but fails.
func (r *Resolver) ResolveWith(ctx context.Context, id, importer string, overrides Overrides) (*Result, error) {
	opts := overrides.Apply(r.options)
	c := &call{
		ctx:        ctx,
		opts:       opts,
		conditions: effectiveConditions(opts),
		log:        opts.Logger.WithValues("id", id),
	}
	importer = c.absoluteImporter(importer)

	resolved, err := c.withPostfix(id, importer, c.dispatch)
	if err != nil {
		c.log.V(1).Info("resolution failed", "importer", importer, "error", err.Error())
		return nil, err
	}
	if resolved == nil {
		c.log.V(1).Info("unresolved", "importer", importer)
		return nil, nil
	}
	c.log.V(1).Info("resolved", "importer", importer, "result", resolved.ID, "external", resolved.External)
	return resolved, nil
}

// call carries the state of one top-level resolution.
type call struct {
	ctx          context.Context
	opts         Options
	conditions   []string
	log          logr.Logger
	browserDepth int
}

func (c *call) absoluteImporter(importer string) string {
	root := c.opts.Root
	if !filepath.IsAbs(root) {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	switch {
	case importer == "":
		return filepath.Join(root, defaultImporterName)
	case filepath.IsAbs(importer):
		return filepath.Clean(importer)
	default:
		return filepath.Join(root, importer)
	}
}

type resolveFunc func(id, importer string) (*Result, error)

// withPostfix resolves id, and when that fails retries without its ?query
// or #hash and re-attaches the postfix to the result.
func (c *call) withPostfix(id, importer string, resolve resolveFunc) (*Result, error) {
	var errs []error

	resolved, err := resolve(id, importer)
	switch {
	case err != nil && c.ctx.Err() != nil:
		return nil, err
	case err != nil:
		errs = append(errs, err)
	case resolved != nil:
		return resolved, nil
	}

	if file, postfix := splitPostfix(id); postfix != "" {
		resolved, err := resolve(file, importer)
		switch {
		case err != nil && c.ctx.Err() != nil:
			return nil, err
		case err != nil:
			errs = append(errs, err)
		case resolved != nil:
			resolved.ID = appendPostfix(resolved.ID, postfix)
			return resolved, nil
		}
	}

	switch len(errs) {
	case 0:
		return nil, nil
	case 1:
		return nil, errs[0]
	default:
		return nil, errors.Join(errs...)
	}
}

// appendPostfix re-attaches postfix to id. A query joins one the hooks
// already added, so "a.js?v=1" and "?raw" give "a.js?v=1&raw".
func appendPostfix(id, postfix string) string {
	if query, ok := strings.CutPrefix(postfix, "?"); ok && strings.Contains(id, "?") {
		return id + "&" + query
	}
	return id + postfix
}

func (c *call) dispatch(id, importer string) (*Result, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}

	kind := Classify(id)
	c.log.V(2).Info("dispatch", "specifier", id, "kind", kind.String())
	switch kind {
	case KindRelative, KindAbsolute:
		return c.finalize(c.pathResolve(id, importer, kind == KindRelative))
	case KindURL:
		return c.finalize(c.urlResolve(id))
	case KindBuiltin:
		return c.finalize(c.resolveNodeBuiltin(id, importer))
	case KindImports:
		return c.finalize(c.packageImportsResolve(id, importer))
	}

	if c.opts.PreferRelative && bareWordPattern.MatchString(id) {
		resolved, err := c.pathResolve("./"+id, importer, true)
		if err != nil && c.ctx.Err() != nil {
			return nil, err
		}
		if err == nil && resolved != nil {
			return c.finalize(resolved, nil)
		}
	}
	return c.bareResolve(id, importer)
}

// pathResolve resolves a relative or absolute path. Browser field mapping
// only applies to relative specifiers.
func (c *call) pathResolve(id, importer string, relative bool) (*Result, error) {
	absolute := filepath.FromSlash(id)
	if !filepath.IsAbs(absolute) {
		if !relative && drivePattern.MatchString(id) {
			// a drive-letter path from another platform
			return nil, nil
		}
		absolute = filepath.Join(filepath.Dir(importer), absolute)
	}
	absolute = filepath.Clean(absolute)

	resolved, err := c.loadAsFileOrDirectory(absolute, !strings.HasSuffix(id, "/"))
	if err != nil {
		return nil, err
	}
	if resolved != nil {
		if relative {
			return c.tryBrowserFieldMapping(resolved, id)
		}
		return resolved, nil
	}

	if relative {
		mapped, err := c.tryBrowserFieldCandidate(absolute, id)
		if err != nil || mapped != nil {
			return mapped, err
		}
		return nil, invalidf("Failed to resolve %s from %s.", quote(id), quote(importer))
	}
	return nil, nil
}

func (c *call) urlResolve(id string) (*Result, error) {
	switch {
	case strings.HasPrefix(id, "file:"):
		p, err := fileURLToPath(id)
		if err != nil {
			return nil, invalidf("Invalid file URL %s: %v", quote(id), err)
		}
		if !fsprobe.Exists(p) {
			return nil, invalidf("File not found: %s", quote(p))
		}
		return &Result{ID: p}, nil
	case isDataURL(id):
		return nil, nil
	case isExternalURL(id):
		return &Result{ID: id, External: true}, nil
	default:
		return nil, nil
	}
}

func fileURLToPath(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		return "", errors.New("file URL host must be empty or localhost")
	}
	p := parsed.Path
	if trimmed := strings.TrimPrefix(p, "/"); filepath.VolumeName(filepath.FromSlash(trimmed)) != "" {
		p = trimmed
	}
	if p == "" {
		return "", errors.New("file URL has no path")
	}
	return filepath.FromSlash(p), nil
}

// bareResolve runs the package pipeline: externalization, the pre-resolve
// hook, nested selection, package search, then the post-resolve hook.
func (c *call) bareResolve(id, importer string) (*Result, error) {
	external := c.opts.Externalizer != nil && c.opts.Externalizer.ShouldExternalize(id)

	if pre := c.opts.PrePackageResolver; pre != nil {
		resolved, err := pre.PrePackageResolve(c.ctx, id, importer, external)
		if err != nil || resolved != nil {
			return resolved, err
		}
	}

	if c.opts.SupportNestedSelectedPackages && strings.Contains(id, ">") {
		nestedID, nestedImporter, ok, err := c.resolveNestedSelectedPackages(id, importer)
		if err != nil || !ok {
			return nil, err
		}
		id, importer = nestedID, nestedImporter
	}

	resolved, err := c.packageResolve(id, importer, external)
	if err != nil || resolved == nil {
		return nil, err
	}
	if resolved.External || IsSentinelID(resolved.ID) {
		return resolved, nil
	}

	located := resolved.ID
	resolved = c.realpath(c.appendSideEffects(resolved))
	if post := c.opts.PostPackageResolver; post != nil {
		rewritten, err := post.PostPackageResolve(c.ctx, id, *resolved, DetectFileFormat(located) == FormatCommonJS)
		if err != nil {
			return nil, err
		}
		resolved.ID = rewritten
	}
	return resolved, nil
}

// finalize annotates side effects and normalizes symlinks on a result.
func (c *call) finalize(resolved *Result, err error) (*Result, error) {
	if err != nil || resolved == nil {
		return nil, err
	}
	return c.realpath(c.appendSideEffects(resolved)), nil
}

func (c *call) realpath(resolved *Result) *Result {
	if c.opts.PreserveSymlinks || resolved.External || IsSentinelID(resolved.ID) || !filepath.IsAbs(resolved.ID) {
		return resolved
	}
	resolved.ID = fsprobe.Realpath(resolved.ID)
	return resolved
}
