package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/reader"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgCatalogLoaded MsgKind = iota
	MsgChaptersLoaded
	MsgSessionOpened
	MsgSessionEvent
	MsgListenDone
)

type catalogPayload struct {
	mangas []*models.Manga
	err    error
}

type chaptersPayload struct {
	chapters []*models.Chapter
	err      error
}

type sessionPayload struct {
	session *reader.Session
	err     error
}

// catalogLoadedMsg is the constructor for [MsgCatalogLoaded]
func catalogLoadedMsg(mangas []*models.Manga, err error) Msg {
	return Msg{kind: MsgCatalogLoaded, data: catalogPayload{mangas, err}}
}

// chaptersLoadedMsg is the constructor for [MsgChaptersLoaded]
func chaptersLoadedMsg(chapters []*models.Chapter, err error) Msg {
	return Msg{kind: MsgChaptersLoaded, data: chaptersPayload{chapters, err}}
}

// sessionOpenedMsg is the constructor for [MsgSessionOpened]
func sessionOpenedMsg(session *reader.Session, err error) Msg {
	return Msg{kind: MsgSessionOpened, data: sessionPayload{session, err}}
}

// sessionEventMsg is the constructor for [MsgSessionEvent]
func sessionEventMsg(ev reader.Event) Msg {
	return Msg{kind: MsgSessionEvent, data: ev}
}

// listenDoneMsg is the constructor for [MsgListenDone]
func listenDoneMsg(err error) Msg {
	return Msg{kind: MsgListenDone, data: err}
}
