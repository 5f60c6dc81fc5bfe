package reader

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/services"
	"github.com/desertthunder/aleerpe/internal/shared"
	"github.com/desertthunder/aleerpe/internal/tasks"
)

// Scripter produces the narration playlist of a chapter.
//
// Implemented by tasks.ScriptEngine. Generate must not send on progress after it returns.
type Scripter interface {
	Generate(ctx context.Context, chapter *models.Chapter, lang models.Language, progress chan<- tasks.ProgressUpdate) ([]models.AudioSegment, error)
}

// PlaybackStatus is the state of the audio player.
type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackGenerating
	PlaybackPlaying
	PlaybackPaused
	PlaybackClosed
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackGenerating:
		return "generating"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackClosed:
		return "closed"
	default:
		return ""
	}
}

// PlaybackState is a snapshot of the player.
//
// Playing is true once the backend has started voicing the current segment and until it is paused or stopped.
type PlaybackState struct {
	Status       PlaybackStatus
	CurrentIndex int
	Playing      bool
	Generating   bool
	Progress     int // 0..100, generation progress
	Segments     int
	Language     models.Language
	Text         string // text of the current segment
}

// Direction is a skip direction.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

const defaultSpeechRate = 1.0

// Player voices a chapter playlist one segment at a time and keeps the navigator on the page being narrated.
//
// Each dispatched utterance carries a ticket. Moving to another segment revokes the ticket before the backend is
// stopped, so a completion from a superseded utterance can never advance or replay the playlist.
type Player struct {
	mu       sync.Mutex
	chapter  *models.Chapter
	nav      *Navigator
	identity Identity
	scripter Scripter
	synth    services.Synthesizer
	rate     float64
	logger   *log.Logger
	events   emitter

	generations ticker
	utterances  ticker
	cancelGen   context.CancelFunc

	playlist []models.AudioSegment
	lang     models.Language
	status   PlaybackStatus
	index    int
	playing  bool
	progress int
}

// PlayerOpts configures a [Player].
type PlayerOpts struct {
	Identity   Identity
	Scripter   Scripter
	Synth      services.Synthesizer
	SpeechRate float64
	Logger     *log.Logger
}

// NewPlayer creates an idle [Player] for chapter that drives nav.
func NewPlayer(chapter *models.Chapter, nav *Navigator, opts PlayerOpts) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	rate := opts.SpeechRate
	if rate <= 0 {
		rate = defaultSpeechRate
	}

	return &Player{
		chapter:  chapter,
		nav:      nav,
		identity: opts.Identity,
		scripter: opts.Scripter,
		synth:    opts.Synth,
		rate:     rate,
		logger:   logger,
	}
}

// State returns a snapshot of the player.
func (p *Player) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Player) snapshotLocked() PlaybackState {
	s := PlaybackState{
		Status:       p.status,
		CurrentIndex: p.index,
		Playing:      p.playing,
		Generating:   p.status == PlaybackGenerating,
		Progress:     p.progress,
		Segments:     len(p.playlist),
		Language:     p.lang,
	}
	if p.index >= 0 && p.index < len(p.playlist) {
		s.Text = p.playlist[p.index].Text
	}
	return s
}

// Playlist returns a copy of the installed playlist.
func (p *Player) Playlist() []models.AudioSegment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.playlist)
}

// Generate obtains the playlist for lang and starts playing its first segment.
//
// It blocks until the playlist is ready, reporting progress as [EventPlayback] events. A call made while a playlist is
// already being generated is a no-op. Returns [shared.ErrUnauthorized] when nobody is signed in and
// [shared.ErrNoPlaylist] when the chapter has nothing to narrate.
func (p *Player) Generate(ctx context.Context, lang models.Language) error {
	if p.identity == nil || !p.identity.IsAuthenticated() {
		return shared.ErrUnauthorized
	}
	if p.scripter == nil || p.synth == nil {
		return fmt.Errorf("%w: narration is not configured", shared.ErrServiceUnavailable)
	}

	p.mu.Lock()
	if p.status == PlaybackGenerating {
		p.mu.Unlock()
		return nil
	}

	p.stopLocked()
	tk := p.generations.Issue()
	gctx, cancel := context.WithCancel(ctx)
	p.cancelGen = cancel
	p.playlist = nil
	p.lang = lang
	p.status = PlaybackGenerating
	p.index = 0
	p.progress = 0
	p.publishLocked()
	p.mu.Unlock()

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			p.reportProgress(tk, u.Percent)
		}
	}()

	segments, err := p.scripter.Generate(gctx, p.chapter, lang, progress)
	close(progress)
	<-done
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.generations.Valid(tk) {
		return fmt.Errorf("narration cancelled: %w", context.Canceled)
	}
	p.cancelGen = nil

	if err != nil {
		p.status = PlaybackIdle
		p.publishLocked()
		return fmt.Errorf("failed to generate narration: %w", err)
	}
	if len(segments) == 0 {
		p.status = PlaybackIdle
		p.publishLocked()
		return fmt.Errorf("%w: chapter %s has nothing to narrate", shared.ErrNoPlaylist, p.chapter.ID())
	}

	p.playlist = segments
	p.progress = 100
	p.logger.Info("narration ready", "chapter", p.chapter.ID(), "lang", lang, "segments", len(segments))

	p.nav.Claim(DriverNarration)
	p.playSegmentLocked(0)
	return nil
}

func (p *Player) reportProgress(tk Ticket, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.generations.Valid(tk) || percent <= p.progress {
		return
	}
	p.progress = min(percent, 100)
	p.publishLocked()
}

// PlaySegment plays the segment at index. An index past either end of the playlist stops playback.
func (p *Player) PlaySegment(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.playlist) == 0 {
		return shared.ErrNoPlaylist
	}
	p.nav.Claim(DriverNarration)
	p.playSegmentLocked(index)
	return nil
}

// playSegmentLocked disarms and stops the current utterance, then dispatches segment index.
//
// Segments the backend refuses are skipped.
func (p *Player) playSegmentLocked(index int) {
	for {
		p.utterances.Revoke()
		p.synth.Stop()
		p.playing = false

		if index < 0 || index >= len(p.playlist) {
			p.status = PlaybackIdle
			p.publishLocked()
			return
		}

		p.index = index
		seg := p.playlist[index]
		tk := p.utterances.Issue()
		u := services.Utterance{
			Text:    seg.Text,
			Voice:   p.lang.Voice(),
			Rate:    p.rate,
			OnStart: func() { p.started(tk) },
			OnEnd:   func() { p.ended(tk) },
			OnError: func(err error) { p.failed(tk, err) },
		}

		if err := p.synth.Speak(u); err != nil {
			p.logger.Warn("segment skipped", "segment", index, "page", seg.PageIndex, "error", err)
			index++
			continue
		}

		p.status = PlaybackPlaying
		p.nav.Follow(seg.PageIndex)
		p.publishLocked()
		return
	}
}

func (p *Player) started(tk Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.utterances.Valid(tk) {
		return
	}
	p.playing = p.status == PlaybackPlaying
	p.publishLocked()
}

func (p *Player) ended(tk Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.utterances.Valid(tk) {
		return
	}
	p.advanceLocked()
}

func (p *Player) failed(tk Ticket, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.utterances.Valid(tk) {
		return
	}
	p.logger.Warn("segment failed", "segment", p.index, "error", err)
	p.advanceLocked()
}

// advanceLocked moves past the current segment once it is over.
func (p *Player) advanceLocked() {
	if p.index >= len(p.playlist)-1 {
		p.utterances.Revoke()
		p.playing = false
		p.status = PlaybackIdle
		p.publishLocked()
		return
	}
	p.playSegmentLocked(p.index + 1)
}

// Toggle pauses while playing, resumes while paused, and replays the current segment when stopped.
//
// Returns [shared.ErrNoPlaylist] when nothing has been generated.
func (p *Player) Toggle() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.playlist) == 0 {
		return shared.ErrNoPlaylist
	}

	switch p.status {
	case PlaybackPlaying:
		if err := p.synth.Pause(); err != nil {
			p.logger.Warn("speech backend cannot pause", "error", err)
			return fmt.Errorf("%w: %w", shared.ErrPlayback, err)
		}
		p.status = PlaybackPaused
		p.playing = false
		p.publishLocked()
	case PlaybackPaused:
		if err := p.synth.Resume(); err != nil {
			p.logger.Warn("speech backend cannot resume", "error", err)
			return fmt.Errorf("%w: %w", shared.ErrPlayback, err)
		}
		p.nav.Claim(DriverNarration)
		p.status = PlaybackPlaying
		p.playing = true
		p.nav.Follow(p.playlist[p.index].PageIndex)
		p.publishLocked()
	case PlaybackGenerating:
	default:
		p.nav.Claim(DriverNarration)
		p.playSegmentLocked(p.index)
	}
	return nil
}

// Skip moves one segment in dir, staying within the playlist.
//
// Skipping past either end replays the first or last segment.
func (p *Player) Skip(dir Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.playlist) == 0 {
		return shared.ErrNoPlaylist
	}

	p.nav.Claim(DriverNarration)
	p.playSegmentLocked(clamp(p.index+int(dir), 0, len(p.playlist)-1))
	return nil
}

// Close stops narration, cancels a running generation and discards the playlist.
//
// Manual navigation owns the navigator afterwards. It is safe to call more than once.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasClosed := p.status == PlaybackClosed
	p.stopLocked()
	p.playlist = nil
	p.status = PlaybackClosed
	p.index = 0
	p.progress = 0
	p.nav.Claim(DriverReader)
	if !wasClosed {
		p.publishLocked()
	}
}

// stopLocked cancels generation and disarms then stops the current utterance.
func (p *Player) stopLocked() {
	if p.cancelGen != nil {
		p.cancelGen()
		p.cancelGen = nil
	}
	p.generations.Revoke()
	p.utterances.Revoke()
	if p.synth != nil {
		p.synth.Stop()
	}
	p.playing = false
}

func (p *Player) publishLocked() {
	p.events.send(Event{Kind: EventPlayback, Page: p.nav.Current(), Playback: p.snapshotLocked()})
}
