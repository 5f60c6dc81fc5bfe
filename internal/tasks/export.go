package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// ExportOpts contains configuration for script exports.
type ExportOpts struct {
	Format    string // Export format: json, csv, markdown, txt
	OutputDir string // Base output directory (default: scripts_{chapter}_{epoch})
}

// ScriptExportResult is the outcome of exporting one language.
type ScriptExportResult struct {
	Language models.Language `json:"language"`
	Segments int             `json:"segments"`
	File     string          `json:"file,omitempty"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
}

// ExportResult summarizes a multi-language export. It is also written as the export manifest.
type ExportResult struct {
	ChapterID         string               `json:"chapter_id"`
	ChapterTitle      string               `json:"chapter_title"`
	Format            string               `json:"format"`
	TotalLanguages    int                  `json:"total_languages"`
	SuccessfulExports int                  `json:"successful_exports"`
	FailedExports     int                  `json:"failed_exports"`
	OutputDirectory   string               `json:"output_directory"`
	ManifestPath      string               `json:"-"`
	Results           []ScriptExportResult `json:"results"`
}

// Export generates the chapter's playlist for each language and writes it to opts.OutputDir.
//
// Languages are processed in order, each through [ScriptEngine.Generate], so saved scripts are reused and new ones are
// saved. A language that fails is recorded in the result without stopping the others. A manifest summarizing the run is
// written next to the scripts.
func (e *ScriptEngine) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	chapter *models.Chapter,
	langs []models.Language,
	opts ExportOpts,
) (*ExportResult, error) {
	if chapter == nil {
		return nil, fmt.Errorf("%w: chapter is required", shared.ErrInvalidArgument)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("%w: at least one language is required", shared.ErrMissingArgument)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !formatter.IsExportFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidFlag, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("scripts_%s_%d", chapter.ID(), time.Now().Unix())
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		ChapterID:       chapter.ID(),
		ChapterTitle:    chapter.Title(),
		Format:          opts.Format,
		TotalLanguages:  len(langs),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ScriptExportResult, 0, len(langs)),
	}

	total := len(langs)
	for i, lang := range langs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("script export cancelled: %w", err)
		}

		e.sendProgress(prog, exportingScriptUpdate(i+1, total, lang))
		res := e.exportLanguage(ctx, chapter, lang, opts)
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(i+1, total, lang, res.Segments))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(i+1, total, lang, fmt.Errorf("%s", res.Error)))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportLanguage generates and writes a single language.
func (e *ScriptEngine) exportLanguage(ctx context.Context, chapter *models.Chapter, lang models.Language, opts ExportOpts) ScriptExportResult {
	result := ScriptExportResult{Language: lang}

	segments, err := e.Generate(ctx, chapter, lang, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Segments = len(segments)

	script := formatter.Script{
		ChapterID:    chapter.ID(),
		ChapterTitle: chapter.Title(),
		Language:     lang,
		Segments:     segments,
	}
	path, err := formatter.WriteScriptExport(script, opts.Format, opts.OutputDir)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.File = path
	result.Success = true
	return result
}
