package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/aleerpe/internal/models"
)

var (
	_ list.Item = mangaItem{}
	_ list.Item = chapterItem{}
)

// mangaItem wraps [models.Manga] to implement [list.Item].
type mangaItem struct {
	manga *models.Manga
}

func (i mangaItem) FilterValue() string { return i.manga.Title() }
func (i mangaItem) Title() string       { return i.manga.Title() }
func (i mangaItem) Description() string {
	desc := i.manga.Author()
	if genres := i.manga.Genres(); len(genres) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, strings.Join(genres, ", "))
	}
	if i.manga.Rating() > 0 {
		desc = fmt.Sprintf("%s • ★ %.1f", desc, i.manga.Rating())
	}
	return desc
}

// chapterItem wraps [models.Chapter] to implement [list.Item].
type chapterItem struct {
	chapter *models.Chapter
}

func (i chapterItem) FilterValue() string { return i.chapter.Title() }
func (i chapterItem) Title() string       { return i.chapter.Title() }
func (i chapterItem) Description() string {
	return fmt.Sprintf("%d pages", i.chapter.PageCount())
}
