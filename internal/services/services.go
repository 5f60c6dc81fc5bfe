// package services defines the external collaborators of a reading session:
// the AI translation gateway, page image loading and speech synthesis.
package services

import (
	"context"

	"github.com/desertthunder/aleerpe/internal/models"
)

// Gateway defines the interface for AI providers that read manga pages.
type Gateway interface {
	// TranslatePage detects every text region of a page and translates it into lang.
	// An empty result means the page has no text.
	TranslatePage(ctx context.Context, page models.PageImage, lang models.Language) ([]models.TranslationResult, error)

	// NarratePage produces a narration script for a page in lang.
	// A blank script means the page has nothing worth narrating.
	NarratePage(ctx context.Context, page models.PageImage, lang models.Language) (string, error)

	// Name returns the name of the provider (e.g., "Gemini")
	Name() string
}

// Synthesizer is a speech backend that voices one [Utterance] at a time.
//
// Implementations must never invoke an utterance's callbacks from inside Speak, and
// Stop, Pause and Resume must return without waiting for callbacks to finish.
// Callers are expected to hold their own locks across these calls.
type Synthesizer interface {
	// Speak dispatches u, replacing whatever was being voiced.
	// An error means u was not dispatched and none of its callbacks will fire.
	Speak(u Utterance) error

	// Stop cancels the current utterance. Its OnEnd and OnError callbacks will not fire.
	Stop()

	// Pause suspends the current utterance, keeping its position.
	// An error means the utterance keeps playing.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error
}

// Utterance is a single piece of text handed to a [Synthesizer].
type Utterance struct {
	Text  string
	Voice string  // BCP 47 tag, e.g. "es-ES"
	Rate  float64 // 1.0 is normal speed

	OnStart func()
	OnEnd   func()
	OnError func(error)
}

func (u Utterance) started() {
	if u.OnStart != nil {
		u.OnStart()
	}
}

func (u Utterance) ended() {
	if u.OnEnd != nil {
		u.OnEnd()
	}
}

func (u Utterance) failed(err error) {
	if u.OnError != nil {
		u.OnError(err)
	}
}
