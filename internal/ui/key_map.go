package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up          key.Binding
	down        key.Binding
	enter       key.Binding
	back        key.Binding
	prev        key.Binding
	next        key.Binding
	translate   key.Binding
	language    key.Binding
	listen      key.Binding
	toggle      key.Binding
	skipBack    key.Binding
	skipForward key.Binding
	closePlayer key.Binding
	quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		prev:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
		next:        key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
		translate:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "translate")),
		language:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "language")),
		listen:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "listen")),
		toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		skipBack:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev segment")),
		skipForward: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next segment")),
		closePlayer: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "close player")),
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.prev, k.next, k.translate, k.language},
		{k.listen, k.toggle, k.skipBack, k.skipForward, k.closePlayer},
		{k.back, k.quit},
	}
}

// readerKeys lists the bindings shown under the reader.
func (k keyMap) readerKeys() []key.Binding {
	return []key.Binding{k.prev, k.next, k.translate, k.language, k.listen, k.toggle, k.skipBack, k.skipForward, k.closePlayer, k.quit}
}
