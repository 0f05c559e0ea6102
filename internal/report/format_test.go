package report

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xeipuuv/gojsonschema"
)

func sampleReport() Report {
	entries := []Entry{
		{Specifier: "lodash", Importer: "src/main.js", Kind: "bare", Status: StatusResolved, ID: "/p/node_modules/lodash/lodash.js", SideEffects: "false"},
		{Specifier: "react", Importer: "src/main.js", Kind: "bare", Status: StatusExternal, ID: "react"},
		{Specifier: "fs", Importer: "src/main.js", Kind: "bare", Status: StatusSentinel, ID: "__browser-external:fs"},
		{Specifier: "missing", Importer: "src/main.js", Kind: "bare", Status: StatusUnresolved},
		{Specifier: "pkg/internal", Importer: "src/util.js", Line: 3, Column: 8, Kind: "bare", Status: StatusFailed, Error: "\"./internal\" is not exported from \"/p/node_modules/pkg\"."},
	}
	return Report{SchemaVersion: SchemaVersion, Root: "/p", Entries: entries, Summary: ComputeSummary(entries)}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, " sarif ": FormatSARIF}
	for input, want := range cases {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q): expected %q, got %q, %v", input, want, got, err)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestComputeSummary(t *testing.T) {
	summary := sampleReport().Summary
	if summary.Total != 5 || summary.Resolved != 1 || summary.External != 1 || summary.Sentinel != 1 || summary.Unresolved != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if !summary.HasFailures() {
		t.Fatalf("expected failures")
	}
	if ComputeSummary([]Entry{{Status: StatusResolved}}).HasFailures() {
		t.Fatalf("expected no failures")
	}
}

func TestFormatTable(t *testing.T) {
	output, err := NewFormatter().Format(sampleReport(), FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fragment := range []string{
		"Summary: 5 specifiers, 1 resolved, 1 external, 1 sentinel, 1 unresolved, 1 failed",
		"Side Effects",
		"/p/node_modules/lodash/lodash.js",
		"__browser-external:fs",
		"Errors:",
		"is not exported",
		"src/util.js:3:8",
	} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected output to include %q, got:\n%s", fragment, output)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	output, err := NewFormatter().Format(Report{Warnings: []string{"no config found"}}, FormatTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "No specifiers to resolve.") || !strings.Contains(output, "no config found") {
		t.Fatalf("unexpected empty output %q", output)
	}
}

func TestFormatJSON(t *testing.T) {
	output, err := NewFormatter().Format(sampleReport(), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(decoded.Entries) != 5 || decoded.Entries[0].SideEffects != "false" {
		t.Fatalf("unexpected decoded entries %#v", decoded.Entries)
	}
}

func TestFormatUnknown(t *testing.T) {
	if _, err := NewFormatter().Format(Report{}, Format("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

// sarifShape checks the parts of SARIF 2.1.0 that code scanning consumers require.
const sarifShape = `{
  "type": "object",
  "required": ["version", "runs"],
  "properties": {
    "version": {"const": "2.1.0"},
    "runs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["tool", "results"],
        "properties": {
          "tool": {
            "type": "object",
            "required": ["driver"],
            "properties": {"driver": {"type": "object", "required": ["name"]}}
          },
          "results": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["ruleId", "message"],
              "properties": {
                "level": {"enum": ["none", "note", "warning", "error"]},
                "message": {"type": "object", "required": ["text"]}
              }
            }
          }
        }
      }
    }
  }
}`

func TestFormatSARIF(t *testing.T) {
	output, err := NewFormatter().Format(sampleReport(), FormatSARIF)
	if err != nil {
		t.Fatalf("format sarif: %v", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(sarifShape), gojsonschema.NewStringLoader(output))
	if err != nil {
		t.Fatalf("validate sarif: %v", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, item := range result.Errors() {
			messages = append(messages, item.String())
		}
		t.Fatalf("sarif output failed schema validation: %s", strings.Join(messages, "; "))
	}

	var log sarifLog
	if err := json.Unmarshal([]byte(output), &log); err != nil {
		t.Fatalf("decode sarif: %v", err)
	}
	results := log.Runs[0].Results
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantRules := []string{ruleFailed, ruleSentinel, ruleUnresolved}
	for i, rule := range log.Runs[0].Tool.Driver.Rules {
		if rule.ID != wantRules[i] {
			t.Fatalf("expected rule %d to be %q, got %q", i, wantRules[i], rule.ID)
		}
	}
	first := results[0].Locations[0].PhysicalLocation
	if results[0].RuleID != ruleFailed || first.ArtifactLocation.URI != "src/util.js" {
		t.Fatalf("unexpected first result %#v", results[0])
	}
	if first.Region == nil || first.Region.StartLine != 3 || first.Region.StartColumn != 8 {
		t.Fatalf("expected region 3:8, got %#v", first.Region)
	}
	if region := results[1].Locations[0].PhysicalLocation.Region; region != nil {
		t.Fatalf("expected no region without a line, got %#v", region)
	}
}
