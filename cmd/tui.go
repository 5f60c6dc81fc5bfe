package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/reader"
	"github.com/desertthunder/aleerpe/internal/repositories"
	"github.com/desertthunder/aleerpe/internal/shared"
	"github.com/desertthunder/aleerpe/internal/ui"
)

const defaultTUILog = "./tmp/aleerpe-tui.log"

// catalogLibrary lists the catalog for the interactive reader.
type catalogLibrary struct {
	mangas   *repositories.MangaRepository
	chapters *repositories.ChapterRepository
}

func (l catalogLibrary) Mangas() ([]*models.Manga, error) {
	return l.mangas.List(nil)
}

func (l catalogLibrary) Chapters(mangaID string) ([]*models.Chapter, error) {
	return l.chapters.List(map[string]any{"manga_id": mangaID})
}

// tuiAction redirects logs to a file before wiring the runner, so log output does not interfere with TUI rendering.
func (r *Runner) tuiAction(fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if r.db == nil {
			if err := r.loadConfig(cmd); err != nil {
				return err
			}
			path := r.config.Logging.File
			if path == "" {
				path = defaultTUILog
			}
			fileLogger, f, err := shared.NewFileLogger(path)
			if err != nil {
				return fmt.Errorf("failed to create file logger: %w", err)
			}
			defer f.Close()
			r.SetLogger(fileLogger)
		}
		return r.action(fn)(ctx, cmd)
	}
}

// newReaderModel builds the TUI model, opening sessions with the runner's collaborators.
func (r *Runner) newReaderModel(ctx context.Context, lang models.Language, start *models.Chapter) (*ui.Model, error) {
	// Segment text is shown by the reader view, so captions are not printed.
	synth, err := r.speech(io.Discard)
	if err != nil {
		return nil, err
	}

	open := func(ctx context.Context, chapter *models.Chapter) (*reader.Session, error) {
		return r.openSession(ctx, chapter, lang, synth)
	}

	return ui.NewModel(ctx, ui.Options{
		Library: catalogLibrary{mangas: r.mangas, chapters: r.chapters},
		Open:    open,
		Ledger:  r.auth,
		Chapter: start,
	}), nil
}

// Read launches the interactive reader on the catalog, or directly on --chapter.
func (r *Runner) Read(ctx context.Context, cmd *cli.Command) error {
	lang, err := r.language(cmd)
	if err != nil {
		return err
	}

	var start *models.Chapter
	if id := cmd.String("chapter"); id != "" {
		if start, err = r.chapters.Get(id); err != nil {
			return err
		}
	}

	if r.gateway == nil {
		r.logger.Warn("AI gateway not configured, translation and narration are disabled")
	}

	model, err := r.newReaderModel(ctx, lang, start)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()

	if s := model.Session(); s != nil {
		s.Close()
	}
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
