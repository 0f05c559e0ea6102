package resolver

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/go-logr/logr"
)

const (
	BuiltinOnly            = "only-builtin"
	BuiltinAllowPolyfill   = "allow-polyfill"
	BuiltinBrowserExternal = "browser-external"
	BuiltinReject          = "reject"
)

// BuiltinPolicy decides what a Node.js builtin name resolves to.
type BuiltinPolicy interface {
	ResolveBuiltin(ctx context.Context, id, importer string) (*Result, error)
}

type onlyBuiltin struct{}

type allowPolyfill struct{}

var (
	// OnlyBuiltin resolves builtin names to the external builtin even when a
	// same-named package is installed.
	OnlyBuiltin BuiltinPolicy = onlyBuiltin{}
	// AllowPolyfill prefers an installed same-named package and falls back
	// to the external builtin.
	AllowPolyfill BuiltinPolicy = allowPolyfill{}
)

func (onlyBuiltin) ResolveBuiltin(_ context.Context, id, _ string) (*Result, error) {
	return &Result{ID: id, External: true}, nil
}

func (allowPolyfill) ResolveBuiltin(_ context.Context, id, _ string) (*Result, error) {
	return &Result{ID: id, External: true}, nil
}

// BuiltinFunc adapts a function into a BuiltinPolicy. It is consulted only
// after no same-named package was found.
type BuiltinFunc func(ctx context.Context, id, importer string) (*Result, error)

func (f BuiltinFunc) ResolveBuiltin(ctx context.Context, id, importer string) (*Result, error) {
	return f(ctx, id, importer)
}

// BrowserExternalBuiltins maps builtins to the browser-external sentinel. In
// development the sentinel carries the builtin name for diagnostics.
func BrowserExternalBuiltins(isProduction bool) BuiltinPolicy {
	return BuiltinFunc(func(_ context.Context, id, _ string) (*Result, error) {
		if isProduction {
			return &Result{ID: BrowserExternalID}, nil
		}
		return &Result{ID: BrowserExternalID + ":" + id}, nil
	})
}

// RejectBuiltins fails every builtin import that has no installed polyfill.
func RejectBuiltins() BuiltinPolicy {
	return BuiltinFunc(func(_ context.Context, id, importer string) (*Result, error) {
		return nil, invalidf("Cannot bundle Node.js built-in %s imported from %s. Consider installing a polyfill or removing the built-in dependency.", quote(id), quote(importer))
	})
}

// ParseBuiltinPolicy maps a policy name to its BuiltinPolicy.
func ParseBuiltinPolicy(name string, isProduction bool) (BuiltinPolicy, error) {
	switch name {
	case "", BuiltinAllowPolyfill:
		return AllowPolyfill, nil
	case BuiltinOnly:
		return OnlyBuiltin, nil
	case BuiltinBrowserExternal:
		return BrowserExternalBuiltins(isProduction), nil
	case BuiltinReject:
		return RejectBuiltins(), nil
	default:
		return nil, fmt.Errorf("unknown node builtin policy: %s", name)
	}
}

// PrePackageResolver may answer a bare import before the filesystem search,
// for example from a pre-bundled dependency cache. Returning a nil result
// continues with normal resolution.
type PrePackageResolver interface {
	PrePackageResolve(ctx context.Context, id, importer string, external bool) (*Result, error)
}

// PostPackageResolver may rewrite the final id of a bare import.
type PostPackageResolver interface {
	PostPackageResolve(ctx context.Context, id string, resolved Result, isCJS bool) (string, error)
}

// Externalizer marks bare imports as external before package search.
type Externalizer interface {
	ShouldExternalize(id string) bool
}

// ExternalizeFunc adapts a predicate into an Externalizer.
type ExternalizeFunc func(id string) bool

func (f ExternalizeFunc) ShouldExternalize(id string) bool {
	return f(id)
}

// Options is the immutable configuration of a single resolution.
type Options struct {
	Root                          string
	MainFields                    []string
	Extensions                    []string
	Conditions                    []string
	PreserveSymlinks              bool
	PreferRelative                bool
	SupportNestedSelectedPackages bool
	NodeBuiltin                   BuiltinPolicy
	PrePackageResolver            PrePackageResolver
	PostPackageResolver           PostPackageResolver
	Externalizer                  Externalizer
	IsRequire                     bool
	IsProduction                  bool
	Logger                        logr.Logger
}

// Defaults returns a fresh default Options value.
func Defaults() Options {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return Options{
		Root:        root,
		MainFields:  []string{"browser", "module", "jsnext:main", "jsnext", "main"},
		Extensions:  []string{".mjs", ".js", ".mts", ".ts", ".jsx", ".tsx", ".json"},
		Conditions:  []string{"module", "browser"},
		NodeBuiltin: AllowPolyfill,
		Logger:      logr.Discard(),
	}
}

func (o Options) clone() Options {
	cloned := o
	cloned.MainFields = slices.Clone(o.MainFields)
	cloned.Extensions = slices.Clone(o.Extensions)
	cloned.Conditions = slices.Clone(o.Conditions)
	return cloned
}

func (o Options) hasMainField(field string) bool {
	return slices.Contains(o.MainFields, field)
}

// Overrides holds caller-supplied option values. Nil fields are left as
// they are in the base Options.
type Overrides struct {
	Root                          *string
	MainFields                    []string
	Extensions                    []string
	Conditions                    []string
	PreserveSymlinks              *bool
	PreferRelative                *bool
	SupportNestedSelectedPackages *bool
	NodeBuiltin                   BuiltinPolicy
	PrePackageResolver            PrePackageResolver
	PostPackageResolver           PostPackageResolver
	Externalizer                  Externalizer
	IsRequire                     *bool
	IsProduction                  *bool
	Logger                        *logr.Logger
}

// Apply returns a copy of base with every defined override copied onto it.
// base itself is never modified.
func (o Overrides) Apply(base Options) Options {
	merged := base.clone()
	if o.Root != nil {
		merged.Root = *o.Root
	}
	if o.MainFields != nil {
		merged.MainFields = slices.Clone(o.MainFields)
	}
	if o.Extensions != nil {
		merged.Extensions = slices.Clone(o.Extensions)
	}
	if o.Conditions != nil {
		merged.Conditions = slices.Clone(o.Conditions)
	}
	if o.PreserveSymlinks != nil {
		merged.PreserveSymlinks = *o.PreserveSymlinks
	}
	if o.PreferRelative != nil {
		merged.PreferRelative = *o.PreferRelative
	}
	if o.SupportNestedSelectedPackages != nil {
		merged.SupportNestedSelectedPackages = *o.SupportNestedSelectedPackages
	}
	if o.NodeBuiltin != nil {
		merged.NodeBuiltin = o.NodeBuiltin
	}
	if o.PrePackageResolver != nil {
		merged.PrePackageResolver = o.PrePackageResolver
	}
	if o.PostPackageResolver != nil {
		merged.PostPackageResolver = o.PostPackageResolver
	}
	if o.Externalizer != nil {
		merged.Externalizer = o.Externalizer
	}
	if o.IsRequire != nil {
		merged.IsRequire = *o.IsRequire
	}
	if o.IsProduction != nil {
		merged.IsProduction = *o.IsProduction
	}
	if o.Logger != nil {
		merged.Logger = *o.Logger
	}
	return merged
}

// Ptr returns a pointer to v, for filling Overrides literals.
func Ptr[T any](v T) *T {
	return &v
}

// effectiveConditions drops the mode-dependent conditions from the configured
// list and appends the pair matching IsRequire and IsProduction.
func effectiveConditions(opts Options) []string {
	conditions := make([]string, 0, len(opts.Conditions)+2)
	for _, condition := range opts.Conditions {
		switch condition {
		case "import", "require", "production", "development":
			continue
		}
		if !slices.Contains(conditions, condition) {
			conditions = append(conditions, condition)
		}
	}
	if opts.IsRequire {
		conditions = append(conditions, "require")
	} else {
		conditions = append(conditions, "import")
	}
	if opts.IsProduction {
		conditions = append(conditions, "production")
	} else {
		conditions = append(conditions, "development")
	}
	return conditions
}
