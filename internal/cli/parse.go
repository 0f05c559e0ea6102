package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/app"
	"github.com/ben-ranford/noderesolve/internal/report"
	"github.com/ben-ranford/noderesolve/internal/resolver"
)

var (
	ErrHelpRequested    = errors.New("help requested")
	ErrMissingSpecifier = errors.New("missing specifier; pass specifiers, --scan or --stdin")
)

func ParseArgs(args []string) (app.Request, error) {
	req := app.DefaultRequest()
	if len(args) == 0 || isHelpArg(args[0]) {
		return req, ErrHelpRequested
	}

	switch args[0] {
	case "resolve":
		return parseResolve(args[1:], req)
	case "load":
		return parseLoad(args[1:], req)
	default:
		return req, fmt.Errorf("unknown command: %s", args[0])
	}
}

func parseResolve(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	rootPath := fs.String("root", req.RootPath, "project root")
	configPath := fs.String("config", "", "config file path")
	importer := fs.String("importer", "", "importing file")
	formatFlag := fs.String("format", string(req.Resolve.Format), "output format")
	conditions := fs.String("conditions", "", "comma-separated export conditions")
	mainFields := fs.String("main-fields", "", "comma-separated package.json entry fields")
	extensions := fs.String("extensions", "", "comma-separated file extensions")
	nodeBuiltin := fs.String("node-builtin", "", "node builtin policy")
	external := fs.String("external", "", "comma-separated packages to externalize")
	depsCache := fs.String("deps-cache", "", "pre-bundled dependency cache directory")
	scan := fs.String("scan", "", "comma-separated source files or directories to scan for imports")
	concurrency := fs.Int("concurrency", req.Resolve.Concurrency, "parallel resolutions")
	production := fs.Bool("production", false, "resolve for a production build")
	require := fs.Bool("require", false, "resolve as require() instead of import")
	preserveSymlinks := fs.Bool("preserve-symlinks", false, "keep symlinked paths")
	preferRelative := fs.Bool("prefer-relative", false, "try bare words as relative paths first")
	nested := fs.Bool("nested", false, "support a > b nested package selection")
	readStdin := fs.Bool("stdin", false, "read specifiers from stdin")
	verbose := fs.Bool("verbose", false, "log resolution steps to stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return req, ErrHelpRequested
		}
		return req, err
	}

	format, err := report.ParseFormat(*formatFlag)
	if err != nil {
		return req, err
	}
	if *concurrency < 1 {
		return req, fmt.Errorf("--concurrency must be >= 1")
	}
	if nodeBuiltinName := strings.TrimSpace(*nodeBuiltin); nodeBuiltinName != "" {
		if _, err := resolver.ParseBuiltinPolicy(nodeBuiltinName, false); err != nil {
			return req, err
		}
	}

	specifiers := fs.Args()
	scanPaths := splitList(*scan)
	if len(specifiers) == 0 && len(scanPaths) == 0 && !*readStdin {
		return req, ErrMissingSpecifier
	}

	visited := visitedFlags(fs)
	overrides := resolver.Overrides{}
	if visited["conditions"] {
		overrides.Conditions = splitList(*conditions)
	}
	if visited["main-fields"] {
		overrides.MainFields = splitList(*mainFields)
	}
	if visited["extensions"] {
		values := splitList(*extensions)
		for _, ext := range values {
			if !strings.HasPrefix(ext, ".") {
				return req, fmt.Errorf("--extensions entries must start with a dot: %s", ext)
			}
		}
		overrides.Extensions = values
	}
	if visited["production"] {
		overrides.IsProduction = production
	}
	if visited["require"] {
		overrides.IsRequire = require
	}
	if visited["preserve-symlinks"] {
		overrides.PreserveSymlinks = preserveSymlinks
	}
	if visited["prefer-relative"] {
		overrides.PreferRelative = preferRelative
	}
	if visited["nested"] {
		overrides.SupportNestedSelectedPackages = nested
	}

	req.Mode = app.ModeResolve
	req.RootPath = strings.TrimSpace(*rootPath)
	req.Resolve = app.ResolveRequest{
		Specifiers:  specifiers,
		ScanPaths:   scanPaths,
		Importer:    strings.TrimSpace(*importer),
		ReadStdin:   *readStdin,
		Format:      format,
		ConfigPath:  strings.TrimSpace(*configPath),
		DepsCache:   strings.TrimSpace(*depsCache),
		NodeBuiltin: strings.TrimSpace(*nodeBuiltin),
		External:    splitList(*external),
		Concurrency: *concurrency,
		Verbose:     *verbose,
		Overrides:   overrides,
	}
	return req, nil
}

func parseLoad(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	production := fs.Bool("production", false, "emit the production module")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return req, ErrHelpRequested
		}
		return req, err
	}
	if fs.NArg() == 0 {
		return req, fmt.Errorf("missing module id for load")
	}
	if fs.NArg() > 1 {
		return req, fmt.Errorf("too many arguments for load")
	}

	req.Mode = app.ModeLoad
	req.Load = app.LoadRequest{
		ID:         strings.TrimSpace(fs.Arg(0)),
		Production: *production,
	}
	return req, nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

// normalizeArgs moves flags ahead of positionals so flags may follow the
// specifiers on the command line.
func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			if flagNeedsValue(arg) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positionals = append(positionals, arg)
	}

	if len(positionals) == 0 {
		return flags
	}
	return append(append(flags, "--"), positionals...)
}

func flagNeedsValue(arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	switch strings.TrimLeft(arg, "-") {
	case "root", "config", "importer", "format", "conditions", "main-fields", "extensions", "node-builtin", "external", "deps-cache", "scan", "concurrency":
		return true
	default:
		return false
	}
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	visited := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})
	return visited
}

func splitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
