// package formatter provides functions to export manifest and sync report data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
)

// EntriesToCSV converts manifest entries to CSV format with columns: ID, Title, Artist, Status, Path, Retries, Downloaded
func EntriesToCSV(entries []models.CacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Status", "Path", "Retries", "Downloaded"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		downloaded := ""
		if !entry.DownloadedAt.IsZero() {
			downloaded = entry.DownloadedAt.Format(time.RFC3339)
		}
		record := []string{
			entry.ItemID,
			entry.Title,
			entry.Artist,
			string(entry.Status),
			entry.LocalPath,
			strconv.Itoa(entry.RetryCount),
			downloaded,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown converts a FetchReport to Markdown format
func ReportToMarkdown(report *models.FetchReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync Report\n\n")
	buf.WriteString(fmt.Sprintf("**Succeeded**: %d\n", len(report.Succeeded)))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n", len(report.Failed)))
	buf.WriteString(fmt.Sprintf("**Skipped**: %d\n", report.Skipped))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n\n", report.Duration.Round(time.Second)))

	if len(report.Succeeded) > 0 {
		buf.WriteString("## Downloaded\n\n")
		for i, res := range report.Succeeded {
			buf.WriteString(fmt.Sprintf("%d. %s — `%s`\n", i+1, res.Item.Display(), res.Path))
		}
		buf.WriteString("\n")
	}

	if len(report.Failed) > 0 {
		buf.WriteString("## Failed\n\n")
		for i, res := range report.Failed {
			buf.WriteString(fmt.Sprintf("%d. %s (%d attempts): %v\n", i+1, res.Item.Display(), res.Attempts, res.Err))
		}
	}

	return buf.Bytes(), nil
}

// ReportToText converts a FetchReport to plain text format
func ReportToText(report *models.FetchReport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Succeeded: %d\n", len(report.Succeeded)))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", len(report.Failed)))
	buf.WriteString(fmt.Sprintf("Skipped: %d\n", report.Skipped))
	buf.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration.Round(time.Second)))

	for _, res := range report.Failed {
		buf.WriteString(fmt.Sprintf("failed: %s: %v\n", res.Item.Display(), res.Err))
	}

	return buf.Bytes()
}

// HandoffJSON generates the stable JSON hand-off shape (item ID + local path)
// consumed by downstream organizer tools.
func HandoffJSON(report *models.FetchReport) ([]byte, error) {
	return shared.MarshalJSON(report.Handoff(), true)
}

// ReportExportResult contains the paths of files created by WriteReportExport
type ReportExportResult struct {
	ReportFile  string
	HandoffFile string
}

// WriteReportExport exports a sync report to Markdown with an accompanying hand-off JSON file.
//
// Creates {base}_report.md and {base}_handoff.json
func WriteReportExport(report *models.FetchReport, baseFilepath string) (*ReportExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "sync"
	}

	mdData, err := ReportToMarkdown(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	reportFile := baseFilepath + "_report.md"
	if err := os.WriteFile(reportFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report file: %w", err)
	}

	handoffJSON, err := HandoffJSON(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate hand-off JSON: %w", err)
	}

	handoffFile := baseFilepath + "_handoff.json"
	if err := os.WriteFile(handoffFile, handoffJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write hand-off file: %w", err)
	}

	return &ReportExportResult{
		ReportFile:  reportFile,
		HandoffFile: handoffFile,
	}, nil
}

// WriteEntriesCSV exports manifest entries to a CSV file.
//
// Defaults to manifest_entries.csv as the filename.
func WriteEntriesCSV(entries []models.CacheEntry, filepath string) (string, error) {
	if filepath == "" {
		filepath = "manifest_entries.csv"
	}

	csvData, err := EntriesToCSV(entries)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(filepath, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return filepath, nil
}
