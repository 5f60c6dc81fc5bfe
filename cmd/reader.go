package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/reader"
	"github.com/desertthunder/aleerpe/internal/services"
	"github.com/desertthunder/aleerpe/internal/shared"
	"github.com/desertthunder/aleerpe/internal/tasks"
)

const playbackPoll = 250 * time.Millisecond

// language resolves --lang, falling back to reader.language and then Spanish.
func (r *Runner) language(cmd *cli.Command) (models.Language, error) {
	if flag := strings.TrimSpace(cmd.String("lang")); flag != "" {
		lang, ok := models.ParseLanguage(flag)
		if !ok {
			return "", fmt.Errorf("%w: unsupported language %q (use one of %v)", shared.ErrInvalidFlag, flag, models.Languages())
		}
		return lang, nil
	}
	if lang, ok := models.ParseLanguage(r.config.Reader.Language); ok {
		return lang, nil
	}
	return models.Spanish, nil
}

// speech returns the injected synthesizer, the configured speech command, or captions written to captions.
func (r *Runner) speech(captions io.Writer) (services.Synthesizer, error) {
	if r.synth != nil {
		return r.synth, nil
	}
	if command := strings.TrimSpace(r.config.Reader.SpeechCommand); command != "" {
		return services.NewExecSynthesizer(command)
	}
	return services.NewCaptionSynthesizer(captions, r.config.Reader.WordsPerSecond), nil
}

// openSession starts a reading session for chapter with the runner's collaborators.
func (r *Runner) openSession(ctx context.Context, chapter *models.Chapter, lang models.Language, synth services.Synthesizer) (*reader.Session, error) {
	var scripts reader.Scripter
	if r.engine != nil {
		scripts = r.engine
	}
	var gateway reader.Gateway
	if r.gateway != nil {
		gateway = r.gateway
	}
	return reader.Open(ctx, chapter, reader.Options{
		Identity:   r.auth,
		Gateway:    gateway,
		Pages:      r.pages,
		Scripts:    scripts,
		Synth:      synth,
		Language:   lang,
		SpeechRate: r.config.Reader.SpeechRate,
		Logger:     r.logger,
	})
}

// ReaderTranslate translates the text of one page, spending one AI token.
func (r *Runner) ReaderTranslate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireGateway(); err != nil {
		return err
	}
	lang, err := r.language(cmd)
	if err != nil {
		return err
	}
	chapter, err := r.chapters.Get(cmd.String("chapter"))
	if err != nil {
		return err
	}

	page := int(cmd.Int("page")) - 1
	if page < 0 || page >= chapter.PageCount() {
		return fmt.Errorf("%w: page %d of %d", shared.ErrPageOutOfRange, page+1, chapter.PageCount())
	}

	session, err := r.openSession(ctx, chapter, lang, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	session.Navigator().GoTo(page)
	if _, err := session.Translate(); err != nil {
		return err
	}
	session.Translator().Wait()

	state := session.Translator().State()
	if state.Status == reader.TranslationFailed {
		if state.Err != nil {
			return fmt.Errorf("%s: %w", state.Message, state.Err)
		}
		return fmt.Errorf("%w: %s", shared.ErrGateway, state.Message)
	}

	if cmd.Bool("json") {
		return r.writeJSON(state.Results, true)
	}

	r.writePlain("%s", formatter.TranslationPanel(state.Page, state.Results))
	if balance, err := r.auth.TokenBalance(); err == nil {
		r.writePlainln("AI tokens left: %d", balance)
	}
	return nil
}

// ReaderListen narrates a chapter until the playlist ends or the command is interrupted.
func (r *Runner) ReaderListen(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireGateway(); err != nil {
		return err
	}
	lang, err := r.language(cmd)
	if err != nil {
		return err
	}
	chapter, err := r.chapters.Get(cmd.String("chapter"))
	if err != nil {
		return err
	}
	synth, err := r.speech(r.output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	session, err := r.openSession(ctx, chapter, lang, synth)
	if err != nil {
		return err
	}
	defer session.Close()

	r.writePlainHeader(fmt.Sprintf("%s • %s", chapter.Title(), lang.Name()))

	listening := make(chan error, 1)
	go func() { listening <- session.Listen(ctx) }()

	return r.followPlayback(ctx, session, listening)
}

// followPlayback reports generation progress and returns once narration has started and then stopped.
func (r *Runner) followPlayback(ctx context.Context, session *reader.Session, listening <-chan error) error {
	ticker := time.NewTicker(playbackPoll)
	defer ticker.Stop()

	started := false
	lastPercent := -1
	for {
		select {
		case <-ctx.Done():
			r.writePlainln("Narration stopped.")
			return nil
		case err := <-listening:
			if err != nil {
				return err
			}
			started = true
			listening = nil
		case <-session.Events():
		case <-ticker.C:
		}

		state := session.Player().State()
		if state.Status == reader.PlaybackGenerating && state.Progress != lastPercent {
			lastPercent = state.Progress
			r.logger.Debug("narration progress", "percent", state.Progress)
			r.writePlain("Preparing narration %s %d%%\n", formatter.ProgressBar(float64(state.Progress), 30), state.Progress)
		}
		if started && state.Status == reader.PlaybackIdle {
			r.writePlainln("✓ Narration finished (%d segments)", state.Segments)
			return nil
		}
	}
}

// ReaderExport generates the narration script of a chapter in each language and writes it to disk.
func (r *Runner) ReaderExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireGateway(); err != nil {
		return err
	}
	chapter, err := r.chapters.Get(cmd.String("chapter"))
	if err != nil {
		return err
	}

	var langs []models.Language
	for _, raw := range cmd.StringSlice("lang") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			lang, ok := models.ParseLanguage(part)
			if !ok {
				return fmt.Errorf("%w: unsupported language %q", shared.ErrInvalidFlag, part)
			}
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		lang, _ := r.language(cmd)
		langs = []models.Language{lang}
	}

	r.logger.Info("starting script export", "chapter", chapter.ID(), "languages", len(langs))
	r.writePlain("Exporting narration scripts for %s...\n\n", chapter.Title())

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.ExportScripts:
				r.writePlain("📝 %s\n", update.Message)
			default:
				r.logger.Debug(update.Message, "phase", update.Phase, "percent", update.Percent)
			}
		}
	}()

	result, err := r.engine.Export(ctx, progressCh, chapter, langs, tasks.ExportOpts{
		Format:    cmd.String("format"),
		OutputDir: cmd.String("output"),
	})
	close(progressCh)
	<-done

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Chapter: %s\n", result.ChapterTitle)
	r.writePlain("Exported: %d/%d languages\n", result.SuccessfulExports, result.TotalLanguages)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.FailedExports > 0 {
		r.writePlain("\nFailed languages:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %s\n", res.Language.Name(), res.Error)
			}
		}
	}

	if err != nil {
		return err
	}
	if result.SuccessfulExports == 0 {
		return errors.New("no script could be exported")
	}
	return nil
}
