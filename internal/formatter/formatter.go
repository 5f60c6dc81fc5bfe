// package formatter renders reader data for the terminal and exports narration scripts to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// Supported export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

var exportFormats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ExportFormats lists the supported export formats.
func ExportFormats() []string {
	return slices.Clone(exportFormats)
}

// IsExportFormat reports whether format is supported.
func IsExportFormat(format string) bool {
	return slices.Contains(exportFormats, format)
}

// Script is a chapter playlist in one language, ready for export.
type Script struct {
	ChapterID    string                `json:"chapter_id"`
	ChapterTitle string                `json:"chapter_title"`
	Language     models.Language       `json:"language"`
	Segments     []models.AudioSegment `json:"segments"`
}

// ScriptToJSON converts a Script to indented JSON.
func ScriptToJSON(script Script) ([]byte, error) {
	return shared.MarshalJSON(script, true)
}

// ScriptToCSV converts a Script to CSV format with columns: Segment, Page, Text
//
// Pages are written 1-indexed.
func ScriptToCSV(script Script) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Segment", "Page", "Text"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, seg := range script.Segments {
		record := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(seg.PageIndex + 1),
			seg.Text,
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

// ScriptToMarkdown converts a Script to Markdown with one section per page.
func ScriptToMarkdown(script Script) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", script.ChapterTitle))
	buf.WriteString(fmt.Sprintf("**Language**: %s (%s)\n", script.Language.Name(), script.Language.Voice()))
	buf.WriteString(fmt.Sprintf("**Segments**: %d\n\n", len(script.Segments)))

	for _, seg := range script.Segments {
		buf.WriteString(fmt.Sprintf("## Page %d\n\n%s\n\n", seg.PageIndex+1, seg.Text))
	}

	return buf.Bytes(), nil
}

// ScriptToText converts a Script to plain text format
func ScriptToText(script Script) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Chapter: %s\n", script.ChapterTitle))
	buf.WriteString(fmt.Sprintf("Language: %s\n", script.Language.Name()))
	buf.WriteString(fmt.Sprintf("Segments: %d\n\n", len(script.Segments)))

	for _, seg := range script.Segments {
		buf.WriteString(fmt.Sprintf("[p.%d] %s\n", seg.PageIndex+1, seg.Text))
	}

	return buf.Bytes(), nil
}

// WriteScriptExport writes script to dir in the given format and returns the file path.
//
// Files are named {chapter}_{lang}.{ext}.
func WriteScriptExport(script Script, format, dir string) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)

	switch format {
	case FormatCSV:
		data, err = ScriptToCSV(script)
		ext = "csv"
	case FormatMarkdown:
		data, err = ScriptToMarkdown(script)
		ext = "md"
	case FormatText:
		data, err = ScriptToText(script)
		ext = "txt"
	case FormatJSON:
		data, err = ScriptToJSON(script)
		ext = "json"
	default:
		return "", fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", script.ChapterID, script.Language, ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}
