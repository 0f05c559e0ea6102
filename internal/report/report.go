package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

const SchemaVersion = "0.1.0"

var ErrUnknownFormat = errors.New("unknown format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatSARIF):
		return FormatSARIF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

type Report struct {
	SchemaVersion string    `json:"schemaVersion"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Root          string    `json:"root"`
	ConfigPath    string    `json:"configPath,omitempty"`
	Entries       []Entry   `json:"entries"`
	Summary       *Summary  `json:"summary,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// Status is the outcome class of one resolution.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusExternal   Status = "external"
	StatusSentinel   Status = "sentinel"
	StatusUnresolved Status = "unresolved"
	StatusFailed     Status = "failed"
)

type Entry struct {
	Specifier   string `json:"specifier"`
	Importer    string `json:"importer"`
	Line        int    `json:"line,omitempty"`
	Column      int    `json:"column,omitempty"`
	Kind        string `json:"kind"`
	Status      Status `json:"status"`
	ID          string `json:"id,omitempty"`
	SideEffects string `json:"sideEffects,omitempty"`
	Error       string `json:"error,omitempty"`
}

type Summary struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	External   int `json:"external"`
	Sentinel   int `json:"sentinel"`
	Unresolved int `json:"unresolved"`
	Failed     int `json:"failed"`
}

func ComputeSummary(entries []Entry) *Summary {
	summary := &Summary{Total: len(entries)}
	for _, entry := range entries {
		switch entry.Status {
		case StatusResolved:
			summary.Resolved++
		case StatusExternal:
			summary.External++
		case StatusSentinel:
			summary.Sentinel++
		case StatusUnresolved:
			summary.Unresolved++
		case StatusFailed:
			summary.Failed++
		}
	}
	return summary
}

// HasFailures reports whether any entry did not resolve.
func (s *Summary) HasFailures() bool {
	return s != nil && (s.Unresolved > 0 || s.Failed > 0)
}
