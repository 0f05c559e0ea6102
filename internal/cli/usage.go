package cli

const usage = `Usage:
  noderesolve resolve <specifier>... [--root PATH] [--importer PATH] [--format table|json|sarif] [options]
  noderesolve resolve --scan PATHS [--root PATH] [--format table|json|sarif] [options]
  noderesolve resolve --stdin [--root PATH] [--importer PATH] [options]
  noderesolve load <sentinel-id> [--production]

Resolve options:
  --root PATH                 Project root (default: .)
  --config PATH               Config file (default: .noderesolve.yml, .noderesolve.yaml, noderesolve.toml or noderesolve.json in root)
  --importer PATH             Importing file, relative to root (default: index.html)
  --format table|json|sarif   Output format (default: table)
  --conditions LIST           Comma-separated export conditions (default: module,browser)
  --main-fields LIST          Comma-separated package.json entry fields
  --extensions LIST           Comma-separated extensions to try, in order
  --node-builtin POLICY       only-builtin|allow-polyfill|browser-external|reject
  --external LIST             Comma-separated packages to leave unresolved
  --deps-cache DIR            Serve bare imports from a pre-bundled dependency cache
  --production                Resolve for a production build
  --require                   Resolve as require() instead of import
  --preserve-symlinks         Keep symlinked paths instead of real paths
  --prefer-relative           Try bare words as relative paths first
  --nested                    Support "a > b" nested package selection
  --scan PATHS                Comma-separated source files or directories whose imports are resolved
  --stdin                     Read "specifier [importer]" lines from stdin
  --concurrency N             Parallel resolutions (default: 8)
  --verbose                   Log resolution steps to stderr
  -h, --help                  Show this help text

Exit codes:
  0 all specifiers resolved, 1 runtime error, 2 usage error, 3 unresolved specifiers
`

func Usage() string {
	return usage
}
