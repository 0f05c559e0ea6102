package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ben-ranford/noderesolve/internal/report"
	"github.com/ben-ranford/noderesolve/internal/resolver"
	"github.com/ben-ranford/noderesolve/internal/testutil"
)

const (
	testImporter   = "src/index.js"
	errExecute     = "execute: %v"
	errDecodeJSON  = "decode report: %v"
	lodashManifest = `{"name": "lodash", "main": "lodash.js", "sideEffects": false}`
)

func newProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := testutil.RealTempDir(t)
	tree := map[string]string{
		"package.json":      `{"name": "app"}`,
		"package-lock.json": `{"lockfileVersion": 3}`,
		testImporter:        "",
	}
	for name, content := range files {
		tree[name] = content
	}
	testutil.WriteTree(t, root, tree)

	stamp := time.Now().Add(-time.Hour)
	for _, name := range []string{"package.json", "package-lock.json"} {
		if err := os.Chtimes(filepath.Join(root, name), stamp, stamp); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	return root
}

func newTestApp(in string) (*App, *bytes.Buffer) {
	var logs bytes.Buffer
	application := New(&logs, strings.NewReader(in))
	application.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return application, &logs
}

func resolveRequest(root string, specifiers ...string) Request {
	req := DefaultRequest()
	req.RootPath = root
	req.Resolve.Format = report.FormatJSON
	req.Resolve.Importer = testImporter
	req.Resolve.Specifiers = specifiers
	return req
}

func decodeReport(t *testing.T, output string) report.Report {
	t.Helper()
	var decoded report.Report
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf(errDecodeJSON, err)
	}
	return decoded
}

func statuses(rep report.Report) map[string]report.Status {
	got := make(map[string]report.Status, len(rep.Entries))
	for _, entry := range rep.Entries {
		got[entry.Specifier] = entry.Status
	}
	return got
}

func TestNewApp(t *testing.T) {
	if New(&bytes.Buffer{}, strings.NewReader("")) == nil {
		t.Fatalf("expected app instance")
	}
}

func TestExecuteUnknownMode(t *testing.T) {
	application, _ := newTestApp("")
	if _, err := application.Execute(context.Background(), Request{Mode: "unknown"}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestExecuteResolveBatchReport(t *testing.T) {
	root := newProject(t, map[string]string{
		"src/util.js":                      "",
		"node_modules/lodash/package.json": lodashManifest,
		"node_modules/lodash/lodash.js":    "",
	})
	application, _ := newTestApp("")

	output, err := application.Execute(context.Background(), resolveRequest(root, "./util", "lodash", "missing-pkg", "./nope", "https://cdn.example.com/x.js"))
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	decoded := decodeReport(t, output)
	want := map[string]report.Status{
		"./util":                       report.StatusResolved,
		"lodash":                       report.StatusResolved,
		"missing-pkg":                  report.StatusUnresolved,
		"./nope":                       report.StatusFailed,
		"https://cdn.example.com/x.js": report.StatusExternal,
	}
	if diff := cmp.Diff(want, statuses(decoded)); diff != "" {
		t.Fatalf("unexpected statuses (-want +got):\n%s", diff)
	}
	if decoded.Entries[0].Specifier != "./util" || decoded.Entries[4].Kind != "url" {
		t.Fatalf("expected entries in input order, got %#v", decoded.Entries)
	}
	lodash := decoded.Entries[1]
	if lodash.ID != filepath.Join(root, "node_modules", "lodash", "lodash.js") || lodash.SideEffects != "false" {
		t.Fatalf("unexpected lodash entry %#v", lodash)
	}
	if !strings.Contains(decoded.Entries[3].Error, "Failed to resolve") {
		t.Fatalf("expected failure reason, got %q", decoded.Entries[3].Error)
	}
	if decoded.Root != root || decoded.Summary == nil || decoded.Summary.Total != 5 {
		t.Fatalf("unexpected report header %#v", decoded)
	}
	if !decoded.GeneratedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected generatedAt %v", decoded.GeneratedAt)
	}
}

func TestExecuteResolveSucceedsWhenEverythingResolves(t *testing.T) {
	root := newProject(t, map[string]string{"src/util.js": ""})
	application, _ := newTestApp("")

	req := resolveRequest(root, "./util")
	req.Resolve.Format = report.FormatTable
	output, err := application.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf(errExecute, err)
	}
	if !strings.Contains(output, "Summary: 1 specifiers, 1 resolved") {
		t.Fatalf("unexpected table output:\n%s", output)
	}
}

func TestExecuteResolveReadsStdin(t *testing.T) {
	root := newProject(t, map[string]string{
		"src/util.js":      "",
		"lib/helpers/a.js": "",
		"lib/helpers/b.js": "",
	})
	application, _ := newTestApp("./util\n\n// comment\n./b lib/helpers/a.js\n")

	req := resolveRequest(root)
	req.Resolve.ReadStdin = true
	output, err := application.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf(errExecute, err)
	}
	decoded := decodeReport(t, output)
	if len(decoded.Entries) != 2 {
		t.Fatalf("expected two entries, got %#v", decoded.Entries)
	}
	if decoded.Entries[1].Importer != "lib/helpers/a.js" || decoded.Entries[1].ID != filepath.Join(root, "lib", "helpers", "b.js") {
		t.Fatalf("expected per-line importer, got %#v", decoded.Entries[1])
	}
}

func TestExecuteResolveInputErrors(t *testing.T) {
	root := newProject(t, nil)

	application, _ := newTestApp("")
	if _, err := application.Execute(context.Background(), resolveRequest(root)); !errors.Is(err, ErrNoSpecifiers) {
		t.Fatalf("expected ErrNoSpecifiers, got %v", err)
	}

	application, _ = newTestApp("a b c\n")
	req := resolveRequest(root)
	req.Resolve.ReadStdin = true
	if _, err := application.Execute(context.Background(), req); err == nil || !strings.Contains(err.Error(), "stdin line 1") {
		t.Fatalf("expected stdin line error, got %v", err)
	}

	req = resolveRequest(root, "./x")
	req.Resolve.ConfigPath = "missing.yml"
	if _, err := application.Execute(context.Background(), req); err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected config error, got %v", err)
	}

	req = resolveRequest(root, "fs")
	req.Resolve.NodeBuiltin = "sometimes"
	if _, err := application.Execute(context.Background(), req); err == nil {
		t.Fatalf("expected invalid builtin policy error")
	}
}

func TestExecuteResolveLayersConfigAndFlags(t *testing.T) {
	root := newProject(t, map[string]string{
		".noderesolve.yml":                "extensions: [.js]\nexternal: [react]\nnode_builtin: reject\n",
		"src/util.js":                     "",
		"src/util.ts":                     "",
		"node_modules/react/package.json": `{"name": "react", "main": "index.js"}`,
		"node_modules/react/index.js":     "",
		"node_modules/vue/package.json":   `{"name": "vue", "main": "index.js"}`,
		"node_modules/vue/index.js":       "",
	})
	application, _ := newTestApp("")

	req := resolveRequest(root, "./util", "react", "vue", "fs")
	req.Resolve.Overrides = resolver.Overrides{Extensions: []string{".ts", ".js"}}
	req.Resolve.External = []string{"vue"}
	output, err := application.Execute(context.Background(), req)
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected rejected builtin to fail the batch, got %v", err)
	}

	decoded := decodeReport(t, output)
	if !strings.HasSuffix(decoded.ConfigPath, ".noderesolve.yml") {
		t.Fatalf("expected config path in report, got %q", decoded.ConfigPath)
	}
	if decoded.Entries[0].ID != filepath.Join(root, "src", "util.ts") {
		t.Fatalf("expected flag extensions to win over config, got %q", decoded.Entries[0].ID)
	}
	want := map[string]report.Status{
		"./util": report.StatusResolved,
		"react":  report.StatusExternal,
		"vue":    report.StatusExternal,
		"fs":     report.StatusFailed,
	}
	if diff := cmp.Diff(want, statuses(decoded)); diff != "" {
		t.Fatalf("unexpected statuses (-want +got):\n%s", diff)
	}
}

func TestExecuteResolveBuiltinPolicyFollowsProductionFlag(t *testing.T) {
	root := newProject(t, nil)
	application, _ := newTestApp("")

	req := resolveRequest(root, "fs")
	req.Resolve.NodeBuiltin = resolver.BuiltinBrowserExternal
	output, err := application.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf(errExecute, err)
	}
	if got := decodeReport(t, output).Entries[0]; got.Status != report.StatusSentinel || got.ID != resolver.BrowserExternalID+":fs" {
		t.Fatalf("expected development sentinel, got %#v", got)
	}

	req.Resolve.Overrides = resolver.Overrides{IsProduction: resolver.Ptr(true)}
	output, err = application.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf(errExecute, err)
	}
	if got := decodeReport(t, output).Entries[0]; got.ID != resolver.BrowserExternalID {
		t.Fatalf("expected production sentinel, got %#v", got)
	}
}

func TestExecuteResolveUsesDepsCache(t *testing.T) {
	root := newProject(t, map[string]string{
		"node_modules/.vite/deps/_metadata.json": `{"hash": "deadbeef", "browserHash": "abcd1234", "optimized": {"react": {"file": "react.js"}}}`,
		"node_modules/.vite/deps/react.js":       "",
	})
	application, _ := newTestApp("")

	req := resolveRequest(root, "react")
	req.Resolve.DepsCache = "node_modules/.vite/deps"
	output, err := application.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf(errExecute, err)
	}
	decoded := decodeReport(t, output)
	want := filepath.Join(root, "node_modules", ".vite", "deps", "react.js") + "?v=abcd1234"
	if decoded.Entries[0].ID != want {
		t.Fatalf("expected %q, got %q", want, decoded.Entries[0].ID)
	}
	if len(decoded.Warnings) != 1 || !strings.Contains(decoded.Warnings[0], "built for different lockfiles") {
		t.Fatalf("expected stale cache warning, got %#v", decoded.Warnings)
	}
}

func TestExecuteResolveVerboseLogging(t *testing.T) {
	root := newProject(t, map[string]string{"src/util.js": ""})
	application, logs := newTestApp("")

	req := resolveRequest(root, "./util")
	if _, err := application.Execute(context.Background(), req); err != nil {
		t.Fatalf(errExecute, err)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no logs without verbose, got %q", logs.String())
	}

	req.Resolve.Verbose = true
	if _, err := application.Execute(context.Background(), req); err != nil {
		t.Fatalf(errExecute, err)
	}
	if !strings.Contains(logs.String(), "msg=resolved") || !strings.Contains(logs.String(), "id=./util") {
		t.Fatalf("expected resolution log, got %q", logs.String())
	}
}

func TestExecuteResolveCanceled(t *testing.T) {
	root := newProject(t, nil)
	application, _ := newTestApp("")

	_, err := application.Execute(testutil.CanceledContext(), resolveRequest(root, "lodash"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteLoad(t *testing.T) {
	application, _ := newTestApp("")

	cases := []struct {
		name     string
		load     LoadRequest
		fragment string
	}{
		{name: "production", load: LoadRequest{ID: resolver.BrowserExternalID + ":fs", Production: true}, fragment: "export default {}"},
		{name: "development", load: LoadRequest{ID: resolver.BrowserExternalID + ":fs"}, fragment: "externalized for browser compatibility"},
		{name: "optional peer", load: LoadRequest{ID: resolver.OptionalPeerDepID + ":vue:ui-kit"}, fragment: `Could not resolve "vue" imported by "ui-kit"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			output, err := application.Execute(context.Background(), Request{Mode: ModeLoad, Load: tc.load})
			if err != nil {
				t.Fatalf(errExecute, err)
			}
			if !strings.Contains(output, tc.fragment) {
				t.Fatalf("expected %q in %q", tc.fragment, output)
			}
		})
	}

	if _, err := application.Execute(context.Background(), Request{Mode: ModeLoad, Load: LoadRequest{ID: "/src/main.js"}}); !errors.Is(err, ErrNotSentinelID) {
		t.Fatalf("expected ErrNotSentinelID, got %v", err)
	}
}

func TestExecuteResolveScansSources(t *testing.T) {
	root := newProject(t, map[string]string{
		"src/main.js": "import util from \"./util\";\nconst ghost = require('ghost');\n",
		"src/util.js": "",
	})
	application, _ := newTestApp("")

	req := resolveRequest(root)
	req.Resolve.ScanPaths = []string{"src"}
	output, err := application.Execute(context.Background(), req)
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	decoded := decodeReport(t, output)
	if len(decoded.Entries) != 2 {
		t.Fatalf("expected two scanned imports, got %#v", decoded.Entries)
	}
	util, ghost := decoded.Entries[0], decoded.Entries[1]
	if util.Importer != "src/main.js" || util.Line != 1 || util.Column != 18 || util.Status != report.StatusResolved {
		t.Fatalf("unexpected util entry %#v", util)
	}
	if util.ID != filepath.Join(root, "src", "util.js") {
		t.Fatalf("expected util resolved next to the scanned file, got %q", util.ID)
	}
	if ghost.Specifier != "ghost" || ghost.Line != 2 || ghost.Status != report.StatusUnresolved {
		t.Fatalf("unexpected ghost entry %#v", ghost)
	}
}
