package tasks

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// UnavailableScript is the segment text used for a page the gateway could not narrate.
const UnavailableScript = "[Page %d - Translation unavailable]"

const (
	defaultWorkers = 3
	maxWorkers     = 8
)

// Narrator produces the narration script of a single page.
type Narrator interface {
	NarratePage(ctx context.Context, page models.PageImage, lang models.Language) (string, error)
}

// PageLoader loads the image behind a page reference.
type PageLoader interface {
	Load(ctx context.Context, ref string) (models.PageImage, error)
}

// ScriptCache persists generated playlists per chapter and language.
//
// Implemented by repositories.ScriptCacheAdapter.
type ScriptCache interface {
	Lookup(chapterID string, lang models.Language) ([]models.AudioSegment, bool, error)
	Store(chapterID string, lang models.Language, segments []models.AudioSegment) error
}

// ScriptEngineOpts contains configuration for a [ScriptEngine].
type ScriptEngineOpts struct {
	Workers   int         // Concurrent page workers (default: 3)
	RateLimit float64     // Gateway requests per second, 0 disables pacing
	Logger    *log.Logger // Defaults to a stderr logger
}

// ScriptEngine generates chapter playlists.
//
// Pages are narrated concurrently by a bounded pool of workers, paced by a rate limiter. Concurrent requests for the
// same chapter and language share one generation.
type ScriptEngine struct {
	narrator Narrator
	pages    PageLoader
	cache    ScriptCache
	workers  int
	limiter  *rate.Limiter
	logger   *log.Logger
	group    singleflight.Group
}

// NewScriptEngine creates a new ScriptEngine. cache may be nil.
func NewScriptEngine(narrator Narrator, pages PageLoader, cache ScriptCache, opts ScriptEngineOpts) *ScriptEngine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &ScriptEngine{
		narrator: narrator,
		pages:    pages,
		cache:    cache,
		workers:  opts.Workers,
		limiter:  limiter,
		logger:   opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ScriptEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Generate returns the narration playlist of chapter in lang.
//
// A saved script is returned as is. Otherwise every page is narrated: pages with a blank script are skipped and a page
// that fails yields an [UnavailableScript] segment, so a single bad page never fails the chapter. Only cancellation of
// ctx aborts generation. The new playlist is saved before it is returned.
func (e *ScriptEngine) Generate(ctx context.Context, chapter *models.Chapter, lang models.Language, progress chan<- ProgressUpdate) ([]models.AudioSegment, error) {
	if chapter == nil {
		return nil, fmt.Errorf("%w: chapter is required", shared.ErrInvalidArgument)
	}
	if e.narrator == nil || e.pages == nil {
		return nil, fmt.Errorf("%w: narration gateway not initialized", shared.ErrServiceUnavailable)
	}

	key := chapter.ID() + "/" + string(lang)
	v, err, joined := e.group.Do(key, func() (any, error) {
		return e.generate(ctx, chapter, lang, progress)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		e.logger.Debug("joined running script generation", "chapter", chapter.ID(), "lang", lang)
	}

	segments := slices.Clone(v.([]models.AudioSegment))
	e.sendProgress(progress, scriptReadyUpdate(segments))
	return segments, nil
}

func (e *ScriptEngine) generate(ctx context.Context, chapter *models.Chapter, lang models.Language, progress chan<- ProgressUpdate) ([]models.AudioSegment, error) {
	if e.cache != nil {
		e.sendProgress(progress, lookupScriptUpdate(lang))
		segments, ok, err := e.cache.Lookup(chapter.ID(), lang)
		switch {
		case err != nil:
			e.logger.Warn("script lookup failed", "chapter", chapter.ID(), "lang", lang, "error", err)
		case ok:
			e.sendProgress(progress, cachedScriptUpdate(len(segments)))
			return segments, nil
		}
	}

	refs := chapter.Pages()
	total := len(refs)
	if total == 0 {
		return nil, fmt.Errorf("%w: chapter %s has no pages", shared.ErrInvalidInput, chapter.ID())
	}

	scripts := make([]string, total)
	meter := &progressMeter{total: total}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, ref := range refs {
		g.Go(func() error {
			if err := e.wait(gctx); err != nil {
				return err
			}
			meter.step(func(percent int) {
				e.sendProgress(progress, narratingPageUpdate(i, total, percent))
			})

			script, err := e.narrate(gctx, ref, lang)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				e.logger.Error("page narration failed", "chapter", chapter.ID(), "page", i+1, "error", err)
				script = fmt.Sprintf(UnavailableScript, i+1)
			}
			scripts[i] = script

			meter.step(func(percent int) {
				e.sendProgress(progress, narratedPageUpdate(i, total, percent, err != nil))
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("script generation cancelled: %w", err)
	}

	segments := make([]models.AudioSegment, 0, total)
	for i, script := range scripts {
		if strings.TrimSpace(script) == "" {
			continue
		}
		segments = append(segments, models.AudioSegment{PageIndex: i, Text: script})
	}

	if e.cache != nil && len(segments) > 0 {
		e.sendProgress(progress, saveScriptUpdate(len(segments)))
		if err := e.cache.Store(chapter.ID(), lang, segments); err != nil {
			e.logger.Warn("failed to save script", "chapter", chapter.ID(), "lang", lang, "error", err)
		}
	}

	e.logger.Info("script generated", "chapter", chapter.ID(), "lang", lang, "segments", len(segments))
	return segments, nil
}

func (e *ScriptEngine) narrate(ctx context.Context, ref string, lang models.Language) (string, error) {
	img, err := e.pages.Load(ctx, ref)
	if err != nil {
		return "", err
	}
	return e.narrator.NarratePage(ctx, img, lang)
}

func (e *ScriptEngine) wait(ctx context.Context) error {
	if e.limiter == nil {
		return ctx.Err()
	}
	return e.limiter.Wait(ctx)
}

// progressMeter counts half-page steps: one when a page starts and one when it finishes.
type progressMeter struct {
	mu    sync.Mutex
	total int
	steps int
}

// step records one half step and calls report with the new percentage while still holding the lock,
// so reports leave in non-decreasing order.
func (m *progressMeter) step(report func(percent int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps++
	report(int(math.Round(float64(m.steps) * 100 / float64(2*m.total))))
}
