package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/reader"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CatalogView ViewState = iota
	ChapterView
	ReaderView
)

// Library lists what can be read.
type Library interface {
	Mangas() ([]*models.Manga, error)
	Chapters(mangaID string) ([]*models.Chapter, error)
}

// Ledger reports the token balance of the signed-in account.
type Ledger interface {
	TokenBalance() (int, error)
}

// Opener starts a reading session for a chapter.
type Opener func(ctx context.Context, chapter *models.Chapter) (*reader.Session, error)

// Options holds the dependencies of a [Model].
type Options struct {
	Library Library
	Open    Opener
	Ledger  Ledger
	Chapter *models.Chapter // opens this chapter directly instead of the catalog
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	library Library
	open    Opener
	ledger  Ledger
	start   *models.Chapter

	width    int
	height   int
	catalog  list.Model
	chapters list.Model
	manga    *models.Manga

	session    *reader.Session
	sessionCtx context.Context
	stop       context.CancelFunc
	bar     progress.Model
	notice  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	view := CatalogView
	if opts.Chapter != nil {
		view = ReaderView
	}
	return &Model{
		ctx:      ctx,
		view:     view,
		library:  opts.Library,
		open:     opts.Open,
		ledger:   opts.Ledger,
		start:    opts.Chapter,
		catalog:  newList("Catalog"),
		chapters: newList("Chapters"),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the catalog, or opens the chapter the model was started with.
func (m *Model) Init() tea.Cmd {
	if m.start != nil {
		return m.openSession(m.start)
	}
	return m.loadCatalog()
}

// Session returns the open reading session, if any.
func (m *Model) Session() *reader.Session {
	return m.session
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.catalog.SetSize(msg.Width-4, msg.Height-8)
		m.chapters.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CatalogView:
			return m.handleCatalogKeys(msg)
		case ChapterView:
			return m.handleChapterKeys(msg)
		case ReaderView:
			return m.handleReaderKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCatalogLoaded:
		p := msg.data.(catalogPayload)
		if p.err != nil {
			m.err = p.err
			return m, nil
		}
		items := make([]list.Item, len(p.mangas))
		for i, manga := range p.mangas {
			items[i] = mangaItem{manga: manga}
		}
		return m, m.catalog.SetItems(items)

	case MsgChaptersLoaded:
		p := msg.data.(chaptersPayload)
		if p.err != nil {
			m.notice = describe(p.err)
			return m, nil
		}
		items := make([]list.Item, len(p.chapters))
		for i, chapter := range p.chapters {
			items[i] = chapterItem{chapter: chapter}
		}
		m.chapters.Title = m.manga.Title()
		m.chapters.ResetSelected()
		m.view = ChapterView
		return m, m.chapters.SetItems(items)

	case MsgSessionOpened:
		p := msg.data.(sessionPayload)
		if p.err != nil {
			if m.start != nil {
				m.err = p.err
				return m, nil
			}
			m.notice = describe(p.err)
			return m, nil
		}
		m.attach(p.session)
		return m, m.waitForEvent()

	case MsgSessionEvent:
		return m, m.waitForEvent()

	case MsgListenDone:
		if err, _ := msg.data.(error); err != nil && !errors.Is(err, context.Canceled) {
			m.notice = describe(err)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CatalogView:
		return m.renderList(m.catalog)
	case ChapterView:
		return m.renderList(m.chapters)
	case ReaderView:
		return m.renderReader()
	default:
		return ""
	}
}

func (m *Model) handleCatalogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit) && m.catalog.FilterState() != list.Filtering:
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.catalog.SelectedItem().(mangaItem); ok {
			m.manga = item.manga
			return m, m.loadChapters(item.manga.ID())
		}
	}

	var cmd tea.Cmd
	m.catalog, cmd = m.catalog.Update(msg)
	return m, cmd
}

func (m *Model) handleChapterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = CatalogView
		m.notice = ""
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.chapters.SelectedItem().(chapterItem); ok {
			return m, m.openSession(item.chapter)
		}
	}

	var cmd tea.Cmd
	m.chapters, cmd = m.chapters.Update(msg)
	return m, cmd
}

func (m *Model) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		m.closeSession()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.back) {
		m.closeSession()
		if m.start != nil {
			return m, tea.Quit
		}
		m.view = ChapterView
		return m, nil
	}

	s := m.session
	if s == nil {
		return m, nil
	}
	m.notice = ""

	var err error
	switch {
	case key.Matches(msg, m.keys.prev):
		s.Navigator().Prev()
	case key.Matches(msg, m.keys.next):
		s.Navigator().Next()
	case key.Matches(msg, m.keys.translate):
		_, err = s.Translate()
	case key.Matches(msg, m.keys.language):
		s.SetLanguage(s.Language().Next())
	case key.Matches(msg, m.keys.listen):
		return m, m.listen()
	case key.Matches(msg, m.keys.toggle):
		err = s.Player().Toggle()
	case key.Matches(msg, m.keys.skipBack):
		err = s.Player().Skip(reader.Backward)
	case key.Matches(msg, m.keys.skipForward):
		err = s.Player().Skip(reader.Forward)
	case key.Matches(msg, m.keys.closePlayer):
		s.Player().Close()
	}
	if err != nil {
		m.notice = describe(err)
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case CatalogView:
		m.catalog, cmd = m.catalog.Update(msg)
	case ChapterView:
		m.chapters, cmd = m.chapters.Update(msg)
	}
	return m, cmd
}

func (m *Model) attach(s *reader.Session) {
	m.closeSession()
	ctx, cancel := context.WithCancel(m.ctx)
	m.session = s
	m.sessionCtx = ctx
	m.stop = cancel
	m.view = ReaderView
	m.notice = ""
}

// closeSession tears down the open session, stopping narration and outstanding translations.
func (m *Model) closeSession() {
	if m.session == nil {
		return
	}
	m.stop()
	m.session.Close()
	m.session = nil
}

func (m *Model) loadCatalog() tea.Cmd {
	return func() tea.Msg {
		mangas, err := m.library.Mangas()
		return catalogLoadedMsg(mangas, err)
	}
}

func (m *Model) loadChapters(mangaID string) tea.Cmd {
	return func() tea.Msg {
		chapters, err := m.library.Chapters(mangaID)
		return chaptersLoadedMsg(chapters, err)
	}
}

func (m *Model) openSession(chapter *models.Chapter) tea.Cmd {
	return func() tea.Msg {
		session, err := m.open(m.ctx, chapter)
		return sessionOpenedMsg(session, err)
	}
}

// listen generates and starts narration off the update loop.
func (m *Model) listen() tea.Cmd {
	s := m.session
	ctx := m.sessionCtx
	return func() tea.Msg {
		return listenDoneMsg(s.Listen(ctx))
	}
}

// waitForEvent delivers the next session event, or nothing once the session is closed.
func (m *Model) waitForEvent() tea.Cmd {
	events := m.session.Events()
	ctx := m.sessionCtx
	return func() tea.Msg {
		select {
		case ev := <-events:
			return sessionEventMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

func (m *Model) renderList(l list.Model) string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	if m.view == ChapterView {
		helpKeys = []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	}
	out := fmt.Sprintf("%s\n\n%s", l.View(), m.help.ShortHelpView(helpKeys))
	if m.notice != "" {
		out += "\n" + styles.warn.Render(m.notice)
	}
	return out
}

func (m *Model) renderReader() string {
	s := m.session
	if s == nil {
		return styles.help.Render("Opening chapter...")
	}

	var b strings.Builder
	nav := s.Navigator()
	chapter := s.Chapter()
	ref, _ := chapter.Page(nav.Current())

	b.WriteString(styles.title.Render(chapter.Title()))
	b.WriteString("\n")
	b.WriteString(styles.page.Render(fmt.Sprintf("Page %d/%d • %s", nav.Current()+1, nav.Len(), s.Language().Name())))
	b.WriteString("\n")
	b.WriteString(styles.help.Render(ref))
	b.WriteString("\n\n")

	b.WriteString(styles.panel.Render(m.renderTranslation(s.Translator().State())))
	b.WriteString("\n\n")
	b.WriteString(m.renderPlayback(s.Player().State()))
	b.WriteString("\n")

	if m.ledger != nil {
		if balance, err := m.ledger.TokenBalance(); err == nil {
			b.WriteString(styles.help.Render(fmt.Sprintf("AI tokens: %d", balance)))
		} else {
			b.WriteString(styles.help.Render("Not signed in"))
		}
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(styles.warn.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.readerKeys()))
	return b.String()
}

func (m *Model) renderTranslation(state reader.TranslationState) string {
	switch state.Status {
	case reader.TranslationLoading:
		return styles.help.Render("Translating page...")
	case reader.TranslationReady:
		return strings.TrimRight(formatter.TranslationPanel(state.Page, state.Results), "\n")
	case reader.TranslationFailed:
		return styles.err.Render(state.Message)
	default:
		return styles.help.Render("Press t to translate this page (1 AI token)")
	}
}

func (m *Model) renderPlayback(state reader.PlaybackState) string {
	switch state.Status {
	case reader.PlaybackGenerating:
		return fmt.Sprintf("Preparing narration (%s)\n%s", state.Language.Name(), m.bar.ViewAs(float64(state.Progress)/100))
	case reader.PlaybackPlaying, reader.PlaybackPaused:
		marker := "▶"
		if state.Status == reader.PlaybackPaused {
			marker = "⏸"
		}
		return fmt.Sprintf("%s Segment %d/%d\n%s",
			styles.marker.Render(marker), state.CurrentIndex+1, state.Segments, state.Text)
	case reader.PlaybackIdle:
		if state.Segments > 0 {
			return styles.help.Render(fmt.Sprintf("Narration stopped at segment %d/%d (space to replay)", state.CurrentIndex+1, state.Segments))
		}
	}
	return styles.help.Render("Press a to listen to this chapter")
}

// describe turns an error into a message for the status line.
func describe(err error) string {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return "Sign in to use AI features (aleerpe auth login)"
	case errors.Is(err, shared.ErrQuotaExhausted):
		return "No AI tokens left (aleerpe auth tokens add)"
	case errors.Is(err, shared.ErrNoPlaylist):
		return "Nothing to play yet, press a to listen"
	case errors.Is(err, shared.ErrServiceUnavailable):
		return "AI features are not configured"
	default:
		return err.Error()
	}
}
