// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/models"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func langFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "lang",
		Aliases: []string{"l"},
		Usage:   "Target language (es, en, pt, fr, it, ja); defaults to reader.language",
	}
}

func chapterFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "chapter",
		Usage:    "Chapter ID",
		Required: true,
	}
}

// action wires the runner from --config before running fn, and releases the database afterwards.
func (r *Runner) action(fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := r.prepare(cmd); err != nil {
			return err
		}
		defer r.Close()
		return fn(ctx, cmd)
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and seed the catalog",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles accounts and the AI token balance.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Account and AI token operations",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account (includes welcome AI tokens) and sign in",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (at least 6 characters)", Required: true},
					&cli.BoolFlag{Name: "author", Usage: "Register as an author"},
				},
				Action: r.action(r.AuthRegister),
			},
			{
				Name:  "login",
				Usage: "Sign in to an existing account",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password", Required: true},
				},
				Action: r.action(r.AuthLogin),
			},
			{
				Name:   "logout",
				Usage:  "Sign out",
				Flags:  []cli.Flag{configFlag()},
				Action: r.action(r.AuthLogout),
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in account and its AI token balance",
				Flags:  []cli.Flag{configFlag(), jsonFlag()},
				Action: r.action(r.AuthStatus),
			},
			{
				Name:  "tokens",
				Usage: "Manage AI tokens",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Add AI tokens to the signed-in account",
						Flags: []cli.Flag{
							configFlag(),
							&cli.IntFlag{Name: "amount", Aliases: []string{"n"}, Usage: "Tokens to add", Value: 10},
						},
						Action: r.action(r.AuthTokensAdd),
					},
				},
			},
		},
	}
}

// catalogCommand handles browsing the catalog.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Browse the manga catalog",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List catalog titles by rank",
				Flags: []cli.Flag{
					configFlag(),
					jsonFlag(),
					&cli.StringFlag{Name: "genre", Aliases: []string{"g"}, Usage: "Only titles with this genre"},
					&cli.StringFlag{Name: "status", Usage: "Only titles with this status"},
				},
				Action: r.action(r.CatalogList),
			},
			{
				Name:  "show",
				Usage: "Show a title and its chapters",
				Flags: []cli.Flag{
					configFlag(),
					jsonFlag(),
					&cli.StringFlag{Name: "id", Usage: "Manga ID", Required: true},
				},
				Action: r.action(r.CatalogShow),
			},
			{
				Name:   "categories",
				Usage:  "List genres with the number of titles in each",
				Flags:  []cli.Flag{configFlag(), jsonFlag()},
				Action: r.action(r.CatalogCategories),
			},
		},
	}
}

// authorCommand handles publishing and the author dashboard.
func authorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "author",
		Usage: "Publish works and review their stats (author accounts only)",
		Commands: []*cli.Command{
			{
				Name:  "upload",
				Usage: "Publish a new work",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title", Required: true},
					&cli.StringFlag{Name: "genres", Usage: "Comma separated genres"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Synopsis"},
					&cli.StringFlag{Name: "status", Usage: "Publication status", Value: models.StatusOngoing},
					&cli.StringFlag{Name: "cover", Usage: "Cover image reference"},
				},
				Action: r.action(r.AuthorUpload),
			},
			{
				Name:  "chapter",
				Usage: "Add a chapter to one of your works",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "manga", Aliases: []string{"m"}, Usage: "Manga ID", Required: true},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Chapter title", Required: true},
					&cli.StringSliceFlag{Name: "page", Aliases: []string{"p"}, Usage: "Page image reference, repeat in reading order", Required: true},
				},
				Action: r.action(r.AuthorChapter),
			},
			{
				Name:   "dashboard",
				Usage:  "Show views, likes and revenue of your works",
				Flags:  []cli.Flag{configFlag(), jsonFlag()},
				Action: r.action(r.AuthorDashboard),
			},
		},
	}
}

// fundingCommand handles crowdfunding projects.
func fundingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "funding",
		Usage: "Crowdfunding projects",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show a project's funding progress",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "id", Usage: "Project ID", Required: true},
					&cli.BoolFlag{Name: "open", Usage: "Open the project page in the browser"},
				},
				Action: r.action(r.FundingShow),
			},
		},
	}
}

// readerCommand handles headless reading operations.
func readerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reader",
		Usage: "Translate and narrate chapters without the interactive reader",
		Commands: []*cli.Command{
			{
				Name:  "translate",
				Usage: "Translate the text of one page (costs 1 AI token)",
				Flags: []cli.Flag{
					configFlag(),
					chapterFlag(),
					langFlag(),
					jsonFlag(),
					&cli.IntFlag{Name: "page", Usage: "Page number, starting at 1", Value: 1},
				},
				Action: r.action(r.ReaderTranslate),
			},
			{
				Name:  "listen",
				Usage: "Narrate a chapter, printing captions or using reader.speech_command",
				Flags: []cli.Flag{
					configFlag(),
					chapterFlag(),
					langFlag(),
				},
				Action: r.action(r.ReaderListen),
			},
			{
				Name:  "export",
				Usage: "Export the narration script of a chapter in one or more languages",
				Flags: []cli.Flag{
					configFlag(),
					chapterFlag(),
					&cli.StringSliceFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Languages to export, defaults to reader.language"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format (json, csv, markdown, txt)", Value: formatter.FormatJSON},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
				},
				Action: r.action(r.ReaderExport),
			},
		},
	}
}

// readCommand launches the interactive reader.
func readCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Open the interactive reader",
		Flags: []cli.Flag{
			configFlag(),
			langFlag(),
			&cli.StringFlag{Name: "chapter", Usage: "Open this chapter directly instead of the catalog"},
		},
		Action: r.tuiAction(r.Read),
	}
}
