package reader

// EventKind tells which component changed.
type EventKind int

const (
	EventPage EventKind = iota
	EventTranslation
	EventPlayback
)

func (k EventKind) String() string {
	switch k {
	case EventPage:
		return "page"
	case EventTranslation:
		return "translation"
	case EventPlayback:
		return "playback"
	default:
		return ""
	}
}

// Event is a snapshot published after a state change.
// Only the field matching Kind is populated.
type Event struct {
	Kind        EventKind
	Page        int
	Translation TranslationState
	Playback    PlaybackState
}

// emitter publishes events without ever blocking the publisher.
type emitter chan Event

func (e emitter) send(ev Event) {
	if e == nil {
		return
	}
	select {
	case e <- ev:
	default:
	}
}
