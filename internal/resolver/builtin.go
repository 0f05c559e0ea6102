package resolver

import (
	"strings"
)

// nodeBuiltinModules contains the Node.js core modules that can be imported
// without the "node:" prefix.
//
// This list is based on Node.js's module.builtinModules, excluding private
// modules starting with '_'. Subpath modules are listed explicitly because
// Node only accepts the documented ones ("fs/promises" but not "fs/x").
//
// To update this list, run:
//
//	node -p "require('module').builtinModules.filter(m => !m.startsWith('_')).sort().join('\n')"
//
// Last updated: 2026-02-11 (Node.js v24.x)
var nodeBuiltinModules = map[string]bool{
	"assert":              true,
	"assert/strict":       true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"dns/promises":        true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"fs/promises":         true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"inspector/promises":  true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"path/posix":          true,
	"path/win32":          true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"readline/promises":   true,
	"repl":                true,
	"stream":              true,
	"stream/consumers":    true,
	"stream/promises":     true,
	"stream/web":          true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"timers/promises":     true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"util/types":          true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// prefixOnlyBuiltinModules exist only behind the "node:" scheme.
var prefixOnlyBuiltinModules = map[string]bool{
	"sea":            true,
	"sqlite":         true,
	"test":           true,
	"test/reporters": true,
}

// IsNodeBuiltin checks if a specifier names a Node.js built-in module,
// with or without the "node:" prefix.
func IsNodeBuiltin(id string) bool {
	if name, ok := strings.CutPrefix(id, "node:"); ok {
		return nodeBuiltinModules[name] || prefixOnlyBuiltinModules[name]
	}
	return nodeBuiltinModules[id]
}
