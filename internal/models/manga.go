package models

import (
	"fmt"
	"strings"
)

// Publication status values as shown in the catalog.
const (
	StatusOngoing  = "En curso"
	StatusFinished = "Finalizado"
	StatusPaused   = "Pausado"
)

// MangaStats holds the reader metrics shown on the author dashboard.
type MangaStats struct {
	Views         int
	Likes         int
	Revenue       float64
	MonthlyGrowth float64 // percentage
}

// Manga is a catalog title.
type Manga struct {
	base
	title       string
	coverURL    string
	rating      float64
	status      string
	genres      []string
	description string
	author      string
	authorID    string
	rank        int
	stats       MangaStats
}

// NewManga creates a [Manga] with zeroed stats.
func NewManga(sequence int, title, author, authorID string, genres []string) *Manga {
	return &Manga{
		base:     newBase(sequence),
		title:    title,
		author:   author,
		authorID: authorID,
		genres:   genres,
		status:   StatusOngoing,
	}
}

func (m *Manga) Title() string       { return m.title }
func (m *Manga) CoverURL() string    { return m.coverURL }
func (m *Manga) Rating() float64     { return m.rating }
func (m *Manga) Status() string      { return m.status }
func (m *Manga) Genres() []string    { return m.genres }
func (m *Manga) Description() string { return m.description }
func (m *Manga) Author() string      { return m.author }
func (m *Manga) AuthorID() string    { return m.authorID }
func (m *Manga) Rank() int           { return m.rank }
func (m *Manga) Stats() MangaStats   { return m.stats }

func (m *Manga) SetTitle(title string)       { m.title = title }
func (m *Manga) SetCoverURL(url string)      { m.coverURL = url }
func (m *Manga) SetRating(rating float64)    { m.rating = rating }
func (m *Manga) SetStatus(status string)     { m.status = status }
func (m *Manga) SetGenres(genres []string)   { m.genres = genres }
func (m *Manga) SetDescription(desc string)  { m.description = desc }
func (m *Manga) SetRank(rank int)            { m.rank = rank }
func (m *Manga) SetStats(stats MangaStats)   { m.stats = stats }
func (m *Manga) SetAuthor(name, id string)   { m.author, m.authorID = name, id }
func (m *Manga) HasGenre(genre string) bool {
	for _, g := range m.genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// Validate checks the title and status.
func (m *Manga) Validate() error {
	if strings.TrimSpace(m.title) == "" {
		return fmt.Errorf("title is required")
	}
	switch m.status {
	case StatusOngoing, StatusFinished, StatusPaused:
	default:
		return fmt.Errorf("invalid status: %q", m.status)
	}
	return nil
}

// ParseGenres splits a comma separated genre list, trimming blanks.
func ParseGenres(s string) []string {
	var genres []string
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}
