package services

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/aleerpe/internal/shared"
)

// CaptionSynthesizer "voices" text by printing it as a caption and holding it for as long as reading it aloud would take.
//
// It is the default backend when no speech program is configured, and it keeps a timer per utterance so pause and resume keep position.
type CaptionSynthesizer struct {
	mu             sync.Mutex
	out            io.Writer
	wordsPerSecond float64
	minDuration    time.Duration
	current        *caption
}

type caption struct {
	u         Utterance
	remaining time.Duration
	armedAt   time.Time
	timer     *time.Timer
	armed     bool
	paused    bool
	done      bool
}

// NewCaptionSynthesizer creates a [CaptionSynthesizer] writing captions to out (nil discards them).
func NewCaptionSynthesizer(out io.Writer, wordsPerSecond float64) *CaptionSynthesizer {
	if out == nil {
		out = io.Discard
	}
	if wordsPerSecond <= 0 {
		wordsPerSecond = 2.5
	}
	return &CaptionSynthesizer{out: out, wordsPerSecond: wordsPerSecond, minDuration: time.Second}
}

// SetMinDuration overrides the shortest hold time for an utterance.
func (s *CaptionSynthesizer) SetMinDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDuration = d
}

// Duration estimates how long text takes to read at rate.
//
// Scripts without spaces (e.g. Japanese) are estimated from their rune count.
func (s *CaptionSynthesizer) Duration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := max(len(strings.Fields(text)), utf8.RuneCountInString(text)/6, 1)
	d := time.Duration(float64(words) / (s.wordsPerSecond * rate) * float64(time.Second))
	return max(d, s.minDuration)
}

// Speak prints u and schedules its completion.
func (s *CaptionSynthesizer) Speak(u Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return fmt.Errorf("%w: empty utterance", shared.ErrPlayback)
	}
	if u.Voice == "" {
		return fmt.Errorf("%w: no voice for utterance", shared.ErrPlayback)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	c := &caption{u: u, remaining: s.Duration(u.Text, u.Rate)}
	s.current = c

	if _, err := fmt.Fprintf(s.out, "[%s] %s\n", u.Voice, u.Text); err != nil {
		s.current = nil
		return fmt.Errorf("%w: %w", shared.ErrPlayback, err)
	}

	go func() {
		u.started()
		s.arm(c)
	}()
	return nil
}

func (s *CaptionSynthesizer) arm(c *caption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.done {
		return
	}
	c.armed = true
	if !c.paused {
		s.scheduleLocked(c)
	}
}

func (s *CaptionSynthesizer) scheduleLocked(c *caption) {
	c.armedAt = time.Now()
	c.timer = time.AfterFunc(c.remaining, func() { s.finish(c) })
}

func (s *CaptionSynthesizer) finish(c *caption) {
	s.mu.Lock()
	if c.done {
		s.mu.Unlock()
		return
	}
	if c.paused {
		// The timer fired while Pause was waiting for the lock, so nothing is left to hold.
		c.remaining = 0
		s.mu.Unlock()
		return
	}
	c.done = true
	if s.current == c {
		s.current = nil
	}
	s.mu.Unlock()

	c.u.ended()
}

// Stop drops the current caption without firing its completion.
func (s *CaptionSynthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *CaptionSynthesizer) stopLocked() {
	if c := s.current; c != nil {
		c.done = true
		if c.timer != nil {
			c.timer.Stop()
		}
		s.current = nil
	}
}

// Pause freezes the hold timer of the current caption.
func (s *CaptionSynthesizer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.current
	if c == nil || c.paused {
		return nil
	}
	c.paused = true
	if c.timer == nil {
		return nil
	}
	if c.timer.Stop() {
		c.remaining = max(c.remaining-time.Since(c.armedAt), 0)
	} else {
		c.remaining = 0
	}
	return nil
}

// Resume restarts the hold timer with whatever time was left.
func (s *CaptionSynthesizer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.current
	if c == nil || !c.paused {
		return nil
	}
	c.paused = false
	if c.armed {
		s.scheduleLocked(c)
	}
	return nil
}
