package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// dashboardJSON is the JSON shape of `author dashboard`.
type dashboardJSON struct {
	Author  string      `json:"author"`
	Works   int         `json:"works"`
	Views   int         `json:"views"`
	Likes   int         `json:"likes"`
	Revenue float64     `json:"revenue"`
	Titles  []mangaJSON `json:"titles"`
}

// AuthorUpload publishes a new work owned by the signed-in author.
func (r *Runner) AuthorUpload(ctx context.Context, cmd *cli.Command) error {
	author, err := r.auth.RequireAuthor()
	if err != nil {
		return err
	}

	manga := models.NewManga(0, cmd.String("title"), author.Username(), author.ID(), models.ParseGenres(cmd.String("genres")))
	manga.SetDescription(strings.TrimSpace(cmd.String("description")))
	manga.SetStatus(cmd.String("status"))
	manga.SetCoverURL(cmd.String("cover"))

	if err := r.mangas.Create(manga); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	r.logger.Info("work published", "manga", manga.ID(), "author", author.ID())
	r.writePlain("✓ Published %s\n", manga.Title())
	return r.writePlain("ID: %s\nAdd chapters with 'aleerpe author chapter --manga %s'.\n", manga.ID(), manga.ID())
}

// AuthorChapter adds a chapter to one of the signed-in author's works.
func (r *Runner) AuthorChapter(ctx context.Context, cmd *cli.Command) error {
	author, err := r.auth.RequireAuthor()
	if err != nil {
		return err
	}

	manga, err := r.mangas.Get(cmd.String("manga"))
	if err != nil {
		return err
	}
	if manga.AuthorID() != author.ID() {
		return fmt.Errorf("%w: %s is not one of your works", shared.ErrNotAuthor, manga.Title())
	}

	pages := cmd.StringSlice("page")
	if len(pages) == 0 {
		return fmt.Errorf("%w: at least one --page is required", shared.ErrMissingArgument)
	}

	chapter := models.NewChapter(0, manga.ID(), cmd.String("title"), pages)
	if err := r.chapters.Create(chapter); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	r.logger.Info("chapter added", "manga", manga.ID(), "chapter", chapter.ID(), "pages", chapter.PageCount())
	return r.writePlain("✓ Added %s to %s (%d pages)\nID: %s\n", chapter.Title(), manga.Title(), chapter.PageCount(), chapter.ID())
}

// AuthorDashboard shows views, likes and revenue of the signed-in author's works.
func (r *Runner) AuthorDashboard(ctx context.Context, cmd *cli.Command) error {
	author, err := r.auth.RequireAuthor()
	if err != nil {
		return err
	}

	works, err := r.mangas.List(map[string]any{"author_id": author.ID()})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		totals := formatter.Totals(works)
		out := dashboardJSON{
			Author:  author.Username(),
			Works:   totals.Works,
			Views:   totals.Views,
			Likes:   totals.Likes,
			Revenue: totals.Revenue,
			Titles:  make([]mangaJSON, len(works)),
		}
		for i, m := range works {
			out.Titles[i] = toMangaJSON(m, nil)
		}
		return r.writeJSON(out, true)
	}
	return r.writePlain("%s", formatter.Dashboard(author, works))
}
