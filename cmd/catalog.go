package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/models"
)

// mangaJSON is the JSON shape of a catalog title.
type mangaJSON struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	Status      string        `json:"status"`
	Rating      float64       `json:"rating"`
	Rank        int           `json:"rank,omitempty"`
	Genres      []string      `json:"genres"`
	Description string        `json:"description,omitempty"`
	Chapters    []chapterJSON `json:"chapters,omitempty"`
}

type chapterJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Pages int    `json:"pages"`
}

func toMangaJSON(m *models.Manga, chapters []*models.Chapter) mangaJSON {
	out := mangaJSON{
		ID:          m.ID(),
		Title:       m.Title(),
		Author:      m.Author(),
		Status:      m.Status(),
		Rating:      m.Rating(),
		Rank:        m.Rank(),
		Genres:      m.Genres(),
		Description: m.Description(),
	}
	for _, c := range chapters {
		out.Chapters = append(out.Chapters, chapterJSON{ID: c.ID(), Title: c.Title(), Pages: c.PageCount()})
	}
	return out
}

// CatalogList lists catalog titles by rank, optionally filtered by genre or status.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	mangas, err := r.mangas.List(map[string]any{
		"genre":  cmd.String("genre"),
		"status": cmd.String("status"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]mangaJSON, len(mangas))
		for i, m := range mangas {
			out[i] = toMangaJSON(m, nil)
		}
		return r.writeJSON(out, true)
	}

	if len(mangas) == 0 {
		return r.writePlain("No titles found.\n")
	}
	return r.writePlain("%s\n", formatter.MangaTable(mangas))
}

// CatalogShow shows one title and its chapters.
func (r *Runner) CatalogShow(ctx context.Context, cmd *cli.Command) error {
	manga, err := r.mangas.Get(cmd.String("id"))
	if err != nil {
		return err
	}
	chapters, err := r.chapters.List(map[string]any{"manga_id": manga.ID()})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(toMangaJSON(manga, chapters), true)
	}
	return r.writePlain("%s", formatter.MangaDetail(manga, chapters))
}

// CatalogCategories lists genres with the number of titles in each.
func (r *Runner) CatalogCategories(ctx context.Context, cmd *cli.Command) error {
	mangas, err := r.mangas.List(nil)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, m := range mangas {
		for _, g := range m.Genres() {
			counts[g]++
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(counts, true)
	}
	if len(counts) == 0 {
		return r.writePlain("No categories yet.\n")
	}
	return r.writePlain("%s", formatter.Categories(counts))
}

// FundingShow renders a crowdfunding project and optionally opens its page.
func (r *Runner) FundingShow(ctx context.Context, cmd *cli.Command) error {
	project, err := r.projects.Get(cmd.String("id"))
	if err != nil {
		return err
	}

	if err := r.writePlain("%s", formatter.Funding(project, r.now())); err != nil {
		return err
	}

	if !cmd.Bool("open") {
		return nil
	}
	if strings.TrimSpace(project.URL()) == "" {
		return fmt.Errorf("project %s has no page to open", project.ID())
	}
	r.logger.Info("opening project page", "url", project.URL())
	return r.browse(project.URL())
}
