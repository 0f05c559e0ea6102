package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

type Formatter struct{}

func NewFormatter() Formatter {
	return Formatter{}
}

func (f Formatter) Format(report Report, format Format) (string, error) {
	switch format {
	case FormatTable:
		return formatTable(report), nil
	case FormatJSON:
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload) + "\n", nil
	case FormatSARIF:
		return formatSARIF(report)
	default:
		return "", ErrUnknownFormat
	}
}

func formatTable(report Report) string {
	if len(report.Entries) == 0 {
		return formatEmpty(report)
	}

	var buffer bytes.Buffer
	appendSummary(&buffer, report.Summary)

	writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
	showSideEffects := hasSideEffectsColumn(report.Entries)
	writeTableHeader(writer, showSideEffects)
	for _, entry := range report.Entries {
		_, _ = fmt.Fprintln(writer, formatTableRow(entry, showSideEffects))
	}
	_ = writer.Flush()

	appendErrors(&buffer, report.Entries)
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendSummary(buffer *bytes.Buffer, summary *Summary) {
	if summary == nil {
		return
	}
	_, _ = fmt.Fprintf(
		buffer,
		"Summary: %d specifiers, %d resolved, %d external, %d sentinel, %d unresolved, %d failed\n\n",
		summary.Total,
		summary.Resolved,
		summary.External,
		summary.Sentinel,
		summary.Unresolved,
		summary.Failed,
	)
}

func writeTableHeader(writer *tabwriter.Writer, showSideEffects bool) {
	columns := []string{"Specifier", "Importer", "Kind", "Status", "Result"}
	if showSideEffects {
		columns = append(columns, "Side Effects")
	}
	_, _ = fmt.Fprintln(writer, strings.Join(columns, "\t"))
}

func formatTableRow(entry Entry, showSideEffects bool) string {
	columns := []string{entry.Specifier, importerLocation(entry), entry.Kind, string(entry.Status), dashIfEmpty(entry.ID)}
	if showSideEffects {
		columns = append(columns, dashIfEmpty(entry.SideEffects))
	}
	return strings.Join(columns, "\t")
}

func importerLocation(entry Entry) string {
	if entry.Line <= 0 {
		return dashIfEmpty(entry.Importer)
	}
	return fmt.Sprintf("%s:%d:%d", entry.Importer, entry.Line, entry.Column)
}

func hasSideEffectsColumn(entries []Entry) bool {
	for _, entry := range entries {
		if entry.SideEffects != "" {
			return true
		}
	}
	return false
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatEmpty(report Report) string {
	var buffer bytes.Buffer
	buffer.WriteString("No specifiers to resolve.\n")
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendErrors(buffer *bytes.Buffer, entries []Entry) {
	header := false
	for _, entry := range entries {
		if entry.Error == "" {
			continue
		}
		if !header {
			buffer.WriteString("\nErrors:\n")
			header = true
		}
		buffer.WriteString("- ")
		buffer.WriteString(entry.Specifier)
		buffer.WriteString(": ")
		buffer.WriteString(strings.ReplaceAll(entry.Error, "\n", "\n  "))
		buffer.WriteString("\n")
	}
}

func appendWarnings(buffer *bytes.Buffer, report Report) {
	if len(report.Warnings) == 0 {
		return
	}
	buffer.WriteString("\nWarnings:\n")
	for _, warning := range report.Warnings {
		buffer.WriteString("- ")
		buffer.WriteString(warning)
		buffer.WriteString("\n")
	}
}
