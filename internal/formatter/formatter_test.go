package formatter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

func testScript() Script {
	return Script{
		ChapterID:    "orv-demo",
		ChapterTitle: "Capítulo 1: Demo",
		Language:     models.English,
		Segments: []models.AudioSegment{
			{PageIndex: 0, Text: "The world ended, as the novel said."},
			{PageIndex: 2, Text: "Dokja, \"you have to survive\"."},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ScriptToCSV", func(t *testing.T) {
		data, err := ScriptToCSV(testScript())
		if err != nil {
			t.Fatalf("ScriptToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Segment,Page,Text") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,1,\"The world ended, as the novel said.\"") {
			t.Errorf("CSV missing quoted first segment, got: %s", output)
		}
		if !strings.Contains(output, "2,3,") {
			t.Errorf("CSV should write pages 1-indexed, got: %s", output)
		}
	})

	t.Run("ScriptToMarkdown", func(t *testing.T) {
		data, err := ScriptToMarkdown(testScript())
		if err != nil {
			t.Fatalf("ScriptToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"# Capítulo 1: Demo", "**Language**: English (en-US)", "**Segments**: 2", "## Page 3"} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ScriptToText", func(t *testing.T) {
		data, err := ScriptToText(testScript())
		if err != nil {
			t.Fatalf("ScriptToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Chapter: Capítulo 1: Demo") {
			t.Errorf("text missing chapter line, got: %s", output)
		}
		if !strings.Contains(output, "[p.1] The world ended") {
			t.Errorf("text missing first segment, got: %s", output)
		}
	})

	t.Run("ScriptToText with no segments", func(t *testing.T) {
		script := testScript()
		script.Segments = nil

		data, err := ScriptToText(script)
		if err != nil {
			t.Fatalf("ScriptToText failed: %v", err)
		}
		if !strings.Contains(string(data), "Segments: 0") {
			t.Errorf("expected zero segment count, got: %s", data)
		}
	})
}

func TestWriteScriptExport(t *testing.T) {
	tests := []struct {
		format string
		file   string
	}{
		{FormatJSON, "orv-demo_en.json"},
		{FormatCSV, "orv-demo_en.csv"},
		{FormatMarkdown, "orv-demo_en.md"},
		{FormatText, "orv-demo_en.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()

			path, err := WriteScriptExport(testScript(), tt.format, dir)
			if err != nil {
				t.Fatalf("WriteScriptExport failed: %v", err)
			}
			if want := filepath.Join(dir, tt.file); path != want {
				t.Errorf("expected path %s, got %s", want, path)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read export: %v", err)
			}
			if len(data) == 0 {
				t.Error("export file is empty")
			}
		})
	}

	t.Run("unsupported format", func(t *testing.T) {
		_, err := WriteScriptExport(testScript(), "xml", t.TempDir())
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("IsExportFormat", func(t *testing.T) {
		for _, f := range ExportFormats() {
			if !IsExportFormat(f) {
				t.Errorf("expected %s to be supported", f)
			}
		}
		if IsExportFormat("pdf") {
			t.Error("pdf should not be supported")
		}
	})
}

func TestRenderers(t *testing.T) {
	t.Run("TranslationPanel", func(t *testing.T) {
		results := []models.TranslationResult{
			{OriginalText: "生き残れ", TranslatedText: "Survive", Speaker: "Dokja"},
			{OriginalText: "ドン", TranslatedText: "Boom", Speaker: ""},
		}

		output := TranslationPanel(1, results)
		for _, want := range []string{"Page 2 translation", "Dokja", "Survive", "(生き残れ)", models.UnknownSpeaker} {
			if !strings.Contains(output, want) {
				t.Errorf("panel missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("TranslationPanel without text", func(t *testing.T) {
		output := TranslationPanel(0, nil)
		if !strings.Contains(output, "No text found") {
			t.Errorf("expected empty-page notice, got: %s", output)
		}
	})

	t.Run("MangaTable", func(t *testing.T) {
		m := models.NewManga(1, "Omniscient Reader", "Sing Shong", "author-1", []string{"Acción", "Fantasía"})
		m.SetID("1")
		m.SetRank(1)
		unranked := models.NewManga(2, "Solo Leveling", "Chugong", "author-2", nil)
		unranked.SetID("2")

		output := MangaTable([]*models.Manga{m, unranked})
		for _, want := range []string{"Title", "Omniscient Reader", "Acción, Fantasía", "Solo Leveling"} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("Categories are sorted", func(t *testing.T) {
		output := Categories(map[string]int{"Romance": 2, "Acción": 3})
		if strings.Index(output, "Acción") > strings.Index(output, "Romance") {
			t.Errorf("expected alphabetical order, got: %s", output)
		}
	})

	t.Run("Dashboard totals", func(t *testing.T) {
		author := models.NewUser(1, "Sing", "sing@example.com", true)
		a := models.NewManga(1, "A", "Sing", "author-1", nil)
		a.SetStats(models.MangaStats{Views: 1_000_000, Likes: 500, Revenue: 1000.25})
		b := models.NewManga(2, "B", "Sing", "author-1", nil)
		b.SetStats(models.MangaStats{Views: 250_000, Likes: 1_500, Revenue: 234.25})

		totals := Totals([]*models.Manga{a, b})
		if totals.Views != 1_250_000 || totals.Likes != 2_000 || totals.Works != 2 {
			t.Errorf("unexpected totals: %+v", totals)
		}

		output := Dashboard(author, []*models.Manga{a, b})
		for _, want := range []string{"$1,234.50", "1.3M", "2.0K"} {
			if !strings.Contains(output, want) {
				t.Errorf("dashboard missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("Dashboard without works", func(t *testing.T) {
		author := models.NewUser(1, "Sing", "sing@example.com", true)
		if output := Dashboard(author, nil); !strings.Contains(output, "No published works") {
			t.Errorf("expected empty notice, got: %s", output)
		}
	})

	t.Run("Funding", func(t *testing.T) {
		deadline := time.Date(2025, 11, 9, 23, 59, 59, 0, time.UTC)
		p := models.NewProject(1, "Estéreo", 400, deadline)
		p.SetCurrentAmount(300)
		p.SetBackers(23)

		output := Funding(p, deadline.Add(-72*time.Hour))
		for _, want := range []string{"Estéreo", "75%", "$300.00 of $400.00 goal", "23"} {
			if !strings.Contains(output, want) {
				t.Errorf("funding missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ProgressBar clamps", func(t *testing.T) {
		full := ProgressBar(150, 10)
		if strings.Count(full, "█") != 10 {
			t.Errorf("expected full bar, got %s", full)
		}
		empty := ProgressBar(-5, 10)
		if strings.Count(empty, "░") != 10 {
			t.Errorf("expected empty bar, got %s", empty)
		}
	})
}
