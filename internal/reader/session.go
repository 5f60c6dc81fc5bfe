package reader

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/services"
	"github.com/desertthunder/aleerpe/internal/shared"
)

const eventBuffer = 64

// Options holds the collaborators of a reading session.
type Options struct {
	Identity   Identity
	Gateway    Gateway
	Pages      PageSource
	Scripts    Scripter
	Synth      services.Synthesizer
	Language   models.Language
	SpeechRate float64
	Refund     RefundPolicy
	Logger     *log.Logger
}

// Session is one chapter open in the reader.
//
// It owns a [Navigator], a [Translator] and a [Player] wired together: every page change resets the translation
// panel, and narration moves the navigator while it holds it. Closing the session stops narration and cancels
// outstanding translations.
type Session struct {
	chapter *models.Chapter
	nav     *Navigator
	trans   *Translator
	player  *Player
	events  emitter
	logger  *log.Logger

	mu     sync.Mutex
	lang   models.Language
	closed bool
}

// Open starts a reading session for chapter on its first page.
func Open(ctx context.Context, chapter *models.Chapter, opts Options) (*Session, error) {
	if chapter == nil {
		return nil, fmt.Errorf("%w: chapter is required", shared.ErrInvalidArgument)
	}
	nav, err := NewNavigator(chapter.PageCount())
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "chapter", chapter.ID())

	lang := opts.Language
	if _, ok := models.ParseLanguage(string(lang)); !ok {
		lang = models.Spanish
	}

	events := make(emitter, eventBuffer)

	trans := NewTranslator(ctx, chapter, TranslatorOpts{
		Identity: opts.Identity,
		Gateway:  opts.Gateway,
		Pages:    opts.Pages,
		Language: lang,
		Refund:   opts.Refund,
		Logger:   logger,
	})
	trans.events = events

	player := NewPlayer(chapter, nav, PlayerOpts{
		Identity:   opts.Identity,
		Scripter:   opts.Scripts,
		Synth:      opts.Synth,
		SpeechRate: opts.SpeechRate,
		Logger:     logger,
	})
	player.events = events

	nav.events = events
	nav.OnPageChange(trans.PageChanged)

	logger.Debug("session opened", "pages", chapter.PageCount(), "lang", lang)

	return &Session{
		chapter: chapter,
		nav:     nav,
		trans:   trans,
		player:  player,
		events:  events,
		logger:  logger,
		lang:    lang,
	}, nil
}

// Events delivers state changes of every component. Events are dropped when the receiver falls behind,
// so receivers should re-read state rather than rely on seeing every event.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) Chapter() *models.Chapter { return s.chapter }
func (s *Session) Navigator() *Navigator    { return s.nav }
func (s *Session) Translator() *Translator  { return s.trans }
func (s *Session) Player() *Player          { return s.player }

// Language returns the session language used for translation and narration.
func (s *Session) Language() models.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// SetLanguage changes the language of future translations and narrations.
func (s *Session) SetLanguage(lang models.Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	s.trans.SetLanguage(lang)
}

// Translate requests a translation of the current page.
func (s *Session) Translate() (TranslationState, error) {
	if s.isClosed() {
		return TranslationState{}, shared.ErrSessionClosed
	}
	return s.trans.Request(s.nav.Current())
}

// Listen generates the narration of the chapter and starts playing it. It blocks until playback starts.
func (s *Session) Listen(ctx context.Context) error {
	if s.isClosed() {
		return shared.ErrSessionClosed
	}
	return s.player.Generate(ctx, s.Language())
}

// Close stops narration and cancels outstanding translations. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.player.Close()
	s.trans.Close()
	s.logger.Debug("session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
