package report

import (
	"encoding/json"
	"path"
	"sort"
	"strings"
)

const (
	sarifSchemaURI = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion   = "2.1.0"

	ruleUnresolved = "noderesolve/unresolved"
	ruleFailed     = "noderesolve/invalid"
	ruleSentinel   = "noderesolve/sentinel"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Version        string      `json:"version,omitempty"`
	Rules          []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	ShortDescription sarifMessage  `json:"shortDescription"`
	Help             *sarifMessage `json:"help,omitempty"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level,omitempty"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

var sarifRules = map[string]sarifRule{
	ruleUnresolved: {
		ID:               ruleUnresolved,
		Name:             "unresolved-import",
		ShortDescription: sarifMessage{Text: "Import specifier did not resolve"},
		Help:             &sarifMessage{Text: "Install the package, fix the path, or mark the import as external."},
	},
	ruleFailed: {
		ID:               ruleFailed,
		Name:             "invalid-import",
		ShortDescription: sarifMessage{Text: "Import specifier failed to resolve"},
		Help:             &sarifMessage{Text: "The package manifest or import map rejects this import; check its exports, imports and main fields."},
	},
	ruleSentinel: {
		ID:               ruleSentinel,
		Name:             "synthetic-module",
		ShortDescription: sarifMessage{Text: "Import resolves to a synthetic module"},
		Help:             &sarifMessage{Text: "The import is externalized for the browser or is a missing optional peer dependency."},
	},
}

func formatSARIF(rep Report) (string, error) {
	results, ruleIDs := buildSARIFResults(rep.Entries)
	rules := make([]sarifRule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		rules = append(rules, sarifRules[id])
	}

	log := sarifLog{
		Schema:  sarifSchemaURI,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "noderesolve",
						InformationURI: "https://github.com/ben-ranford/noderesolve",
						Version:        reportVersion(rep),
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}

	payload, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload) + "\n", nil
}

func reportVersion(rep Report) string {
	version := strings.TrimSpace(rep.SchemaVersion)
	if version == "" {
		version = SchemaVersion
	}
	return version
}

func buildSARIFResults(entries []Entry) ([]sarifResult, []string) {
	results := make([]sarifResult, 0)
	seen := make(map[string]bool)
	for _, entry := range entries {
		ruleID, level, message := entrySignal(entry)
		if ruleID == "" {
			continue
		}
		seen[ruleID] = true
		result := sarifResult{
			RuleID:  ruleID,
			Level:   level,
			Message: sarifMessage{Text: message},
			Properties: map[string]any{
				"specifier": entry.Specifier,
				"kind":      entry.Kind,
			},
		}
		if location, ok := toSARIFLocation(entry); ok {
			result.Locations = []sarifLocation{location}
		}
		results = append(results, result)
	}
	sortSARIFResults(results)

	ruleIDs := make([]string, 0, len(seen))
	for id := range seen {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)
	return results, ruleIDs
}

func entrySignal(entry Entry) (string, string, string) {
	switch entry.Status {
	case StatusUnresolved:
		return ruleUnresolved, "error", "Cannot resolve " + entry.Specifier + "."
	case StatusFailed:
		return ruleFailed, "error", entry.Error
	case StatusSentinel:
		return ruleSentinel, "note", entry.Specifier + " resolves to " + entry.ID + "."
	default:
		return "", "", ""
	}
}

func sortSARIFResults(results []sarifResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RuleID != results[j].RuleID {
			return results[i].RuleID < results[j].RuleID
		}
		if results[i].Message.Text != results[j].Message.Text {
			return results[i].Message.Text < results[j].Message.Text
		}
		return resultLocationKey(results[i]) < resultLocationKey(results[j])
	})
}

func toSARIFLocation(entry Entry) (sarifLocation, bool) {
	file := strings.TrimSpace(entry.Importer)
	if file == "" {
		return sarifLocation{}, false
	}
	file = path.Clean(strings.ReplaceAll(file, "\\", "/"))
	location := sarifLocation{
		PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: file},
		},
	}
	if entry.Line > 0 {
		location.PhysicalLocation.Region = &sarifRegion{StartLine: entry.Line, StartColumn: entry.Column}
	}
	return location, true
}

func resultLocationKey(result sarifResult) string {
	if len(result.Locations) == 0 {
		return ""
	}
	return result.Locations[0].PhysicalLocation.ArtifactLocation.URI
}
