package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/ben-ranford/noderesolve/internal/config"
	"github.com/ben-ranford/noderesolve/internal/depcache"
	"github.com/ben-ranford/noderesolve/internal/importscan"
	"github.com/ben-ranford/noderesolve/internal/report"
	"github.com/ben-ranford/noderesolve/internal/resolver"
)

var (
	ErrUnknownMode   = errors.New("unknown mode")
	ErrUnresolved    = errors.New("one or more specifiers did not resolve")
	ErrNoSpecifiers  = errors.New("no specifiers given")
	ErrNotSentinelID = errors.New("not a sentinel module id")
)

// verboseLevel enables logr V(1) and V(2) messages through slog.
const verboseLevel = slog.Level(-2)

type App struct {
	Formatter report.Formatter
	In        io.Reader
	LogOut    io.Writer
	Now       func() time.Time
}

func New(errOut io.Writer, in io.Reader) *App {
	return &App{
		Formatter: report.NewFormatter(),
		In:        in,
		LogOut:    errOut,
		Now:       time.Now,
	}
}

func (a *App) Execute(ctx context.Context, req Request) (string, error) {
	switch req.Mode {
	case ModeResolve:
		return a.executeResolve(ctx, req)
	case ModeLoad:
		return executeLoad(req.Load)
	default:
		return "", ErrUnknownMode
	}
}

func executeLoad(req LoadRequest) (string, error) {
	code, ok := resolver.SentinelModule(strings.TrimSpace(req.ID), req.Production)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotSentinelID, req.ID)
	}
	return code, nil
}

// job is one specifier to resolve. importer goes to the resolver; display
// and the position are what the report shows.
type job struct {
	specifier string
	importer  string
	display   string
	line      int
	column    int
}

func (a *App) executeResolve(ctx context.Context, req Request) (string, error) {
	rootPath, err := filepath.Abs(strings.TrimSpace(req.RootPath))
	if err != nil {
		return "", fmt.Errorf("resolve root path: %w", err)
	}
	loaded, err := config.Load(rootPath, req.Resolve.ConfigPath)
	if err != nil {
		return "", err
	}
	jobs, scanWarnings, err := a.collectJobs(ctx, rootPath, req.Resolve)
	if err != nil {
		return "", err
	}

	log := a.logger(req.Resolve.Verbose)
	r, warnings, err := buildResolver(rootPath, loaded.File, req.Resolve, log)
	if err != nil {
		return "", err
	}
	warnings = append(warnings, scanWarnings...)
	warnings = append(warnings, detectLockfileDrift(r.Options().Root)...)

	entries, err := resolveAll(ctx, resolver.NewDeduped(r), jobs, req.Resolve.Concurrency)
	if err != nil {
		return "", err
	}

	reportData := report.Report{
		SchemaVersion: report.SchemaVersion,
		GeneratedAt:   a.now(),
		Root:          r.Options().Root,
		ConfigPath:    loaded.ConfigPath,
		Entries:       entries,
		Summary:       report.ComputeSummary(entries),
		Warnings:      warnings,
	}
	formatted, err := a.Formatter.Format(reportData, req.Resolve.Format)
	if err != nil {
		return "", err
	}
	if reportData.Summary.HasFailures() {
		return formatted, ErrUnresolved
	}
	return formatted, nil
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

func (a *App) logger(verbose bool) logr.Logger {
	if !verbose || a.LogOut == nil {
		return logr.Discard()
	}
	return logr.FromSlogHandler(slog.NewTextHandler(a.LogOut, &slog.HandlerOptions{Level: verboseLevel}))
}

// collectJobs pairs every specifier with its importer. Lines read from
// stdin may name their own importer after the specifier; scanned imports
// use the file they were found in.
func (a *App) collectJobs(ctx context.Context, rootPath string, req ResolveRequest) ([]job, []string, error) {
	jobs := make([]job, 0, len(req.Specifiers))
	for _, specifier := range req.Specifiers {
		if specifier = strings.TrimSpace(specifier); specifier != "" {
			jobs = append(jobs, newJob(specifier, req.Importer))
		}
	}
	if req.ReadStdin && a.In != nil {
		stdinJobs, err := readJobs(a.In, req.Importer)
		if err != nil {
			return nil, nil, err
		}
		jobs = append(jobs, stdinJobs...)
	}

	var warnings []string
	if len(req.ScanPaths) > 0 {
		found, scanWarnings, err := scanJobs(ctx, rootPath, req.ScanPaths)
		if err != nil {
			return nil, nil, err
		}
		jobs = append(jobs, found...)
		warnings = scanWarnings
	}
	if len(jobs) == 0 {
		return nil, warnings, ErrNoSpecifiers
	}
	return jobs, warnings, nil
}

func newJob(specifier, importer string) job {
	return job{specifier: specifier, importer: importer, display: importer}
}

func scanJobs(ctx context.Context, rootPath string, paths []string) ([]job, []string, error) {
	targets := make([]string, 0, len(paths))
	for _, target := range paths {
		if !filepath.IsAbs(target) {
			target = filepath.Join(rootPath, target)
		}
		targets = append(targets, target)
	}
	scanned, err := importscan.Scan(ctx, targets)
	if err != nil {
		return nil, nil, err
	}

	jobs := make([]job, 0, len(scanned.Imports))
	for _, item := range scanned.Imports {
		display := item.File
		if rel, err := filepath.Rel(rootPath, item.File); err == nil && !strings.HasPrefix(rel, "..") {
			display = filepath.ToSlash(rel)
		}
		jobs = append(jobs, job{
			specifier: item.Specifier,
			importer:  item.File,
			display:   display,
			line:      item.Line,
			column:    item.Column,
		})
	}
	return jobs, scanned.Warnings, nil
}

func readJobs(in io.Reader, defaultImporter string) ([]job, error) {
	var jobs []job
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		fields := strings.Fields(text)
		switch len(fields) {
		case 1:
			jobs = append(jobs, newJob(fields[0], defaultImporter))
		case 2:
			jobs = append(jobs, newJob(fields[0], fields[1]))
		default:
			return nil, fmt.Errorf("stdin line %d: expected \"specifier [importer]\", got %q", line, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read specifiers: %w", err)
	}
	return jobs, nil
}

// buildResolver layers defaults, the config file and the command line, in
// that order, then attaches the dependency cache hooks.
func buildResolver(rootPath string, file config.File, req ResolveRequest, log logr.Logger) (*resolver.Resolver, []string, error) {
	fileOverrides, err := file.Overrides(rootPath)
	if err != nil {
		return nil, nil, err
	}
	r := resolver.New(resolver.Overrides{Root: &rootPath, Logger: &log}).With(fileOverrides).With(req.Overrides)
	opts := r.Options()

	var (
		extra    resolver.Overrides
		warnings []string
	)
	policyName := strings.TrimSpace(req.NodeBuiltin)
	if policyName == "" && file.NodeBuiltin != nil {
		policyName = *file.NodeBuiltin
	}
	if policyName != "" {
		policy, err := resolver.ParseBuiltinPolicy(policyName, opts.IsProduction)
		if err != nil {
			return nil, nil, err
		}
		extra.NodeBuiltin = policy
	}
	if len(file.External) > 0 || len(req.External) > 0 {
		names := append(append([]string{}, file.External...), req.External...)
		extra.Externalizer = config.ExternalPackages(names)
	}

	cacheDir := strings.TrimSpace(req.DepsCache)
	if cacheDir == "" && file.DepsCache != nil {
		cacheDir = *file.DepsCache
	}
	if cacheDir != "" {
		if !filepath.IsAbs(cacheDir) {
			cacheDir = filepath.Join(opts.Root, cacheDir)
		}
		cache, err := depcache.Load(cacheDir, opts.Root, log)
		if err != nil {
			return nil, nil, err
		}
		if cache.Stale(opts.Root) {
			warnings = append(warnings, fmt.Sprintf("dependency cache %s was built for different lockfiles; optimized entries may be out of date", cacheDir))
		}
		extra.PrePackageResolver = cache
		extra.PostPackageResolver = cache
	}
	return r.With(extra), warnings, nil
}

// resolveAll resolves jobs concurrently and returns one entry per job in
// input order. Only cancellation aborts the batch.
func resolveAll(ctx context.Context, r *resolver.Deduped, jobs []job, concurrency int) ([]report.Entry, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	entries := make([]report.Entry, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, item := range jobs {
		group.Go(func() error {
			resolved, err := r.Resolve(groupCtx, item.specifier, item.importer)
			if isContextError(err) {
				return err
			}
			entries[i] = newEntry(item, resolved, err)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func newEntry(item job, resolved *resolver.Result, err error) report.Entry {
	entry := report.Entry{
		Specifier: item.specifier,
		Importer:  item.display,
		Line:      item.line,
		Column:    item.column,
		Kind:      resolver.Classify(item.specifier).String(),
	}
	switch {
	case err != nil:
		entry.Status = report.StatusFailed
		entry.Error = err.Error()
	case resolved == nil:
		entry.Status = report.StatusUnresolved
	case resolver.IsSentinelID(resolved.ID):
		entry.Status = report.StatusSentinel
		entry.ID = resolved.ID
	case resolved.External:
		entry.Status = report.StatusExternal
		entry.ID = resolved.ID
	default:
		entry.Status = report.StatusResolved
		entry.ID = resolved.ID
		entry.SideEffects = string(resolved.ModuleSideEffects)
	}
	return entry
}
