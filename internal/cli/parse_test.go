package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ben-ranford/noderesolve/internal/app"
	"github.com/ben-ranford/noderesolve/internal/report"
)

const (
	unexpectedErrFmt = "unexpected error: %v"
	modeMismatchFmt  = "expected mode %q, got %q"
)

func mustParseArgs(t *testing.T, args []string) app.Request {
	t.Helper()

	req, err := ParseArgs(args)
	if err != nil {
		t.Fatalf(unexpectedErrFmt, err)
	}
	return req
}

func TestParseArgsHelp(t *testing.T) {
	for _, args := range [][]string{nil, {"--help"}, {"help"}, {"-h"}, {"resolve", "-h"}, {"load", "--help"}} {
		if _, err := ParseArgs(args); !errors.Is(err, ErrHelpRequested) {
			t.Fatalf("expected help for %q, got %v", args, err)
		}
	}
}

func TestParseArgsResolveDefaults(t *testing.T) {
	req := mustParseArgs(t, []string{"resolve", "lodash", "./util"})
	if req.Mode != app.ModeResolve {
		t.Fatalf(modeMismatchFmt, app.ModeResolve, req.Mode)
	}
	if diff := cmp.Diff([]string{"lodash", "./util"}, req.Resolve.Specifiers); diff != "" {
		t.Fatalf("unexpected specifiers (-want +got):\n%s", diff)
	}
	if req.RootPath != "." || req.Resolve.Format != report.FormatTable || req.Resolve.Concurrency != 8 {
		t.Fatalf("unexpected defaults %#v", req)
	}
	overrides := req.Resolve.Overrides
	if overrides.IsProduction != nil || overrides.Extensions != nil || overrides.PreserveSymlinks != nil {
		t.Fatalf("expected unset flags to leave overrides nil, got %#v", overrides)
	}
	if len(req.Resolve.External) != 0 {
		t.Fatalf("expected no externals, got %#v", req.Resolve.External)
	}
}

func TestParseArgsResolveFlags(t *testing.T) {
	req := mustParseArgs(t, []string{
		"resolve", "react",
		"--root", "web",
		"--importer", "src/main.ts",
		"--format=json",
		"--conditions", "worker, deno",
		"--main-fields", "module,main",
		"--extensions", ".ts,.js",
		"--node-builtin", "reject",
		"--external", "vue, @scope/ui",
		"--deps-cache", "node_modules/.vite/deps",
		"--concurrency", "2",
		"--production",
		"--require=false",
		"--preserve-symlinks",
		"--prefer-relative",
		"--nested",
		"--verbose",
		"./util",
	})

	if req.RootPath != "web" || req.Resolve.Importer != "src/main.ts" || req.Resolve.Format != report.FormatJSON {
		t.Fatalf("unexpected request %#v", req)
	}
	if diff := cmp.Diff([]string{"react", "./util"}, req.Resolve.Specifiers); diff != "" {
		t.Fatalf("unexpected specifiers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"vue", "@scope/ui"}, req.Resolve.External); diff != "" {
		t.Fatalf("unexpected externals (-want +got):\n%s", diff)
	}
	if req.Resolve.NodeBuiltin != "reject" || req.Resolve.DepsCache != "node_modules/.vite/deps" || req.Resolve.Concurrency != 2 || !req.Resolve.Verbose {
		t.Fatalf("unexpected resolve request %#v", req.Resolve)
	}

	overrides := req.Resolve.Overrides
	if diff := cmp.Diff([]string{"worker", "deno"}, overrides.Conditions); diff != "" {
		t.Fatalf("unexpected conditions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"module", "main"}, overrides.MainFields); diff != "" {
		t.Fatalf("unexpected main fields (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{".ts", ".js"}, overrides.Extensions); diff != "" {
		t.Fatalf("unexpected extensions (-want +got):\n%s", diff)
	}
	checks := []struct {
		name string
		got  *bool
		want bool
	}{
		{"production", overrides.IsProduction, true},
		{"require", overrides.IsRequire, false},
		{"preserve-symlinks", overrides.PreserveSymlinks, true},
		{"prefer-relative", overrides.PreferRelative, true},
		{"nested", overrides.SupportNestedSelectedPackages, true},
	}
	for _, check := range checks {
		if check.got == nil || *check.got != check.want {
			t.Fatalf("expected %s override %v, got %v", check.name, check.want, check.got)
		}
	}
}

func TestParseArgsResolveStdinWithoutSpecifiers(t *testing.T) {
	req := mustParseArgs(t, []string{"resolve", "--stdin"})
	if !req.Resolve.ReadStdin || len(req.Resolve.Specifiers) != 0 {
		t.Fatalf("unexpected stdin request %#v", req.Resolve)
	}
}

func TestParseArgsDoubleDashKeepsDashedSpecifiers(t *testing.T) {
	req := mustParseArgs(t, []string{"resolve", "--format", "json", "--", "--weird", "ok"})
	if diff := cmp.Diff([]string{"--weird", "ok"}, req.Resolve.Specifiers); diff != "" {
		t.Fatalf("unexpected specifiers (-want +got):\n%s", diff)
	}
}

func TestParseArgsResolveErrors(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		fragment string
	}{
		{name: "unknown command", args: []string{"analyse"}, fragment: "unknown command"},
		{name: "missing specifier", args: []string{"resolve", "--format", "json"}, fragment: "missing specifier"},
		{name: "bad format", args: []string{"resolve", "x", "--format", "xml"}, fragment: "unknown format"},
		{name: "bad concurrency", args: []string{"resolve", "x", "--concurrency", "0"}, fragment: "--concurrency must be >= 1"},
		{name: "bad policy", args: []string{"resolve", "fs", "--node-builtin", "sometimes"}, fragment: "unknown node builtin policy"},
		{name: "bad extension", args: []string{"resolve", "x", "--extensions", ".ts,js"}, fragment: "must start with a dot: js"},
		{name: "unknown flag", args: []string{"resolve", "x", "--colour"}, fragment: "flag provided but not defined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseArgs(tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("expected error containing %q, got %v", tc.fragment, err)
			}
		})
	}
}

func TestParseArgsLoad(t *testing.T) {
	req := mustParseArgs(t, []string{"load", "__browser-external:fs", "--production"})
	if req.Mode != app.ModeLoad {
		t.Fatalf(modeMismatchFmt, app.ModeLoad, req.Mode)
	}
	if req.Load.ID != "__browser-external:fs" || !req.Load.Production {
		t.Fatalf("unexpected load request %#v", req.Load)
	}

	if _, err := ParseArgs([]string{"load"}); err == nil || !strings.Contains(err.Error(), "missing module id") {
		t.Fatalf("expected missing id error, got %v", err)
	}
	if _, err := ParseArgs([]string{"load", "a", "b"}); err == nil || !strings.Contains(err.Error(), "too many arguments") {
		t.Fatalf("expected too many arguments error, got %v", err)
	}
}

func TestNormalizeArgs(t *testing.T) {
	got := normalizeArgs([]string{"lodash", "--root", "web", "./util", "--verbose", "--format=json"})
	want := []string{"--root", "web", "--verbose", "--format=json", "--", "lodash", "./util"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected normalized args (-want +got):\n%s", diff)
	}
}

func TestSplitList(t *testing.T) {
	if diff := cmp.Diff([]string{"a", "b"}, splitList(" a, ,b ,")); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("expected empty list, got %#v", got)
	}
}

func TestParseArgsResolveScanWithoutSpecifiers(t *testing.T) {
	req := mustParseArgs(t, []string{"resolve", "--scan", "src, lib/entry.ts", "--format", "sarif"})
	if diff := cmp.Diff([]string{"src", "lib/entry.ts"}, req.Resolve.ScanPaths); diff != "" {
		t.Fatalf("unexpected scan paths (-want +got):\n%s", diff)
	}
	if req.Resolve.Format != report.FormatSARIF || len(req.Resolve.Specifiers) != 0 {
		t.Fatalf("unexpected scan request %#v", req.Resolve)
	}
}
