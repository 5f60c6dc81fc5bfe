package models

import (
	"fmt"
	"strings"
)

// Chapter is an ordered sequence of page image references belonging to one [Manga].
//
// Pages are stored 0-indexed and displayed 1-indexed. A chapter is immutable for the duration of a reading session.
type Chapter struct {
	base
	mangaID string
	title   string
	pages   []string
}

// NewChapter creates a [Chapter] for the given manga.
func NewChapter(sequence int, mangaID, title string, pages []string) *Chapter {
	return &Chapter{
		base:    newBase(sequence),
		mangaID: mangaID,
		title:   title,
		pages:   pages,
	}
}

func (c *Chapter) MangaID() string { return c.mangaID }
func (c *Chapter) Title() string   { return c.title }
func (c *Chapter) PageCount() int  { return len(c.pages) }

// Pages returns a copy of the page references.
func (c *Chapter) Pages() []string {
	pages := make([]string, len(c.pages))
	copy(pages, c.pages)
	return pages
}

// Page returns the reference of the page at index, or false when out of range.
func (c *Chapter) Page(index int) (string, bool) {
	if index < 0 || index >= len(c.pages) {
		return "", false
	}
	return c.pages[index], true
}

// Validate checks the owning manga, title and page references.
func (c *Chapter) Validate() error {
	if c.mangaID == "" {
		return fmt.Errorf("manga id is required")
	}
	if strings.TrimSpace(c.title) == "" {
		return fmt.Errorf("title is required")
	}
	for i, p := range c.pages {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("page %d has an empty reference", i+1)
		}
	}
	return nil
}
