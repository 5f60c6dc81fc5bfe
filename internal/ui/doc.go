// Package ui implements an interactive terminal reader using bubbletea's Elm architecture.
//
// The TUI moves through three views:
//  1. [CatalogView] : Browse the manga catalog
//  2. [ChapterView] : Pick a chapter of the selected manga
//  3. [ReaderView] : Read page by page, translate the current page and listen to the chapter
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Session events flow through the channel of the open reader.Session; each event re-renders the view and re-arms the
// listener until the session is closed.
//
// Keyboard navigation uses vim-style bindings (h/l, enter, esc, t, a, space, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
