package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/services"
	"github.com/desertthunder/aleerpe/internal/shared"
	th "github.com/desertthunder/aleerpe/internal/testing"
)

const orvPage = "/Mangas/Manwhas/1/Cap1.webp"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// syncBuffer is a bytes.Buffer safe for the speech backend and the command to write concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type testEnv struct {
	runner  *Runner
	output  *syncBuffer
	gateway *th.FakeGateway
	opened  []string
}

// newTestEnv wires a runner over a migrated in-memory database with a scripted gateway and page assets on disk.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	assets := t.TempDir()
	pagePath := filepath.Join(assets, filepath.FromSlash(orvPage))
	if err := os.MkdirAll(filepath.Dir(pagePath), 0755); err != nil {
		t.Fatalf("failed to create assets: %v", err)
	}
	if err := os.WriteFile(pagePath, pngHeader, 0644); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}

	config := shared.DefaultConfig()
	config.Session.Path = filepath.Join(t.TempDir(), "session.json")
	config.Reader.AssetsDir = assets
	config.Reader.Language = "es"

	gateway := th.NewFakeGateway()
	gateway.Translations[orvPage] = []models.TranslationResult{
		{OriginalText: "살아남아라", TranslatedText: "Sobrevive", Speaker: "Dokja"},
	}
	gateway.Scripts[orvPage] = "Dokja abre la novela en el metro."

	env := &testEnv{output: &syncBuffer{}, gateway: gateway}
	synth := services.NewCaptionSynthesizer(env.output, 1000)
	synth.SetMinDuration(10 * time.Millisecond)

	env.runner = NewRunner(RunnerOpts{
		Config:  config,
		DB:      db,
		Gateway: gateway,
		Synth:   synth,
		Logger:  shared.NewLogger(io.Discard),
		Output:  env.output,
		Now:     func() time.Time { return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC) },
		Browse: func(url string) error {
			env.opened = append(env.opened, url)
			return nil
		},
	})
	return env
}

// run executes the CLI with args and returns the output it produced.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	e.output.Reset()
	app := &cli.Command{Name: "aleerpe", Commands: e.runner.register(), Writer: io.Discard, ErrWriter: io.Discard}
	err := app.Run(context.Background(), append([]string{"aleerpe"}, args...))
	return e.output.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

func (e *testEnv) register(t *testing.T, author bool) {
	t.Helper()
	args := []string{"auth", "register", "--username", "Dokja", "--email", "dokja@example.com", "--password", "omniscient"}
	if author {
		args = append(args, "--author")
	}
	e.mustRun(t, args...)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			gateway := th.NewFakeGateway()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Gateway:    gateway,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.gateway != gateway {
				t.Error("expected gateway to be set")
			}
			if runner.db != nil {
				t.Error("expected the database to be opened lazily")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with database wires repositories", func(t *testing.T) {
			env := newTestEnv(t)

			if env.runner.auth == nil || env.runner.mangas == nil || env.runner.engine == nil {
				t.Error("expected repositories, auth and script engine to be wired")
			}
			if err := env.runner.Close(); err != nil {
				t.Errorf("expected injected database to stay open, got %v", err)
			}
			if env.runner.db == nil {
				t.Error("expected injected database to be kept")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &th.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := th.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &th.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	wd := th.MustGetwd(t)
	th.MustChdir(t, dir)
	t.Cleanup(func() { os.Chdir(wd) })
	configPath := filepath.Join(dir, "config.toml")

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "aleerpe.db")
	config.Session.Path = filepath.Join(dir, "session.json")
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: output})

	app := &cli.Command{Name: "aleerpe", Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"aleerpe", "setup", "--config", configPath}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	th.AssertFileExists(t, configPath)
	if !strings.Contains(output.String(), "8 titles in catalog") {
		t.Errorf("expected seeded catalog, got %q", output.String())
	}
	if runner.db != nil {
		t.Error("expected the database to be closed after setup")
	}
}

func TestAuthCommands(t *testing.T) {
	env := newTestEnv(t)

	t.Run("status while signed out", func(t *testing.T) {
		out := env.mustRun(t, "auth", "status")
		if !strings.Contains(out, "Not signed in") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("register grants welcome tokens", func(t *testing.T) {
		env.register(t, false)

		out := env.mustRun(t, "auth", "status", "--json")
		var status accountStatus
		if err := json.Unmarshal([]byte(out), &status); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if !status.SignedIn || status.Tokens != models.WelcomeTokens || status.Email != "dokja@example.com" {
			t.Errorf("unexpected status %+v", status)
		}
	})

	t.Run("tokens add", func(t *testing.T) {
		out := env.mustRun(t, "auth", "tokens", "add", "--amount", "5")
		if !strings.Contains(out, "balance: 8") {
			t.Errorf("unexpected output %q", out)
		}

		_, err := env.run(t, "auth", "tokens", "add", "--amount", "0")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("logout and login keep the balance", func(t *testing.T) {
		env.mustRun(t, "auth", "logout")
		if env.runner.auth.IsAuthenticated() {
			t.Fatal("expected to be signed out")
		}

		_, err := env.run(t, "auth", "login", "--email", "dokja@example.com", "--password", "wrong!")
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}

		out := env.mustRun(t, "auth", "login", "--email", "dokja@example.com", "--password", "omniscient")
		if !strings.Contains(out, "8 AI tokens") {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestCatalogCommands(t *testing.T) {
	env := newTestEnv(t)

	t.Run("list", func(t *testing.T) {
		out := env.mustRun(t, "catalog", "list")
		for _, want := range []string{"Omniscient Reader's Viewpoint", "Solo Leveling", "Berserk"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in catalog", want)
			}
		}
	})

	t.Run("list by genre as JSON", func(t *testing.T) {
		out := env.mustRun(t, "catalog", "list", "--genre", "isekai", "--json")
		var mangas []mangaJSON
		if err := json.Unmarshal([]byte(out), &mangas); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if len(mangas) != 1 || mangas[0].Title != "Beginning After The End" {
			t.Errorf("unexpected titles %+v", mangas)
		}
	})

	t.Run("show", func(t *testing.T) {
		out := env.mustRun(t, "catalog", "show", "--id", "1")
		if !strings.Contains(out, "orv-ch1") || !strings.Contains(out, "Sing Shong") {
			t.Errorf("unexpected detail %q", out)
		}

		_, err := env.run(t, "catalog", "show", "--id", "missing")
		if !errors.Is(err, shared.ErrMangaNotFound) {
			t.Errorf("expected ErrMangaNotFound, got %v", err)
		}
	})

	t.Run("categories", func(t *testing.T) {
		out := env.mustRun(t, "catalog", "categories", "--json")
		var counts map[string]int
		if err := json.Unmarshal([]byte(out), &counts); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if counts["Fantasía"] != 4 {
			t.Errorf("expected 4 fantasy titles, got %d", counts["Fantasía"])
		}
	})

	t.Run("funding", func(t *testing.T) {
		out := env.mustRun(t, "funding", "show", "--id", "estereo", "--open")
		if !strings.Contains(out, "Nuestro Mundo en Estéreo") || !strings.Contains(out, "75%") {
			t.Errorf("unexpected funding page %q", out)
		}
		if len(env.opened) != 1 || env.opened[0] != "https://aleerpe.com/funding/estereo" {
			t.Errorf("unexpected opened pages %v", env.opened)
		}
	})
}

func TestAuthorCommands(t *testing.T) {
	t.Run("readers cannot publish", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, false)

		_, err := env.run(t, "author", "upload", "--title", "Mi obra")
		if !errors.Is(err, shared.ErrNotAuthor) {
			t.Errorf("expected ErrNotAuthor, got %v", err)
		}
	})

	t.Run("publish, add a chapter and review", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, true)

		env.mustRun(t, "author", "upload", "--title", "Mi obra", "--genres", "Drama, Romance")
		works, err := env.runner.mangas.List(map[string]any{"genre": "romance"})
		if err != nil || len(works) != 1 {
			t.Fatalf("expected the new work to be listed, got %v (%v)", works, err)
		}
		id := works[0].ID()

		out := env.mustRun(t, "author", "chapter", "--manga", id, "--title", "Capítulo 1", "--page", "a.webp", "--page", "b.webp")
		if !strings.Contains(out, "2 pages") {
			t.Errorf("unexpected output %q", out)
		}

		_, err = env.run(t, "author", "chapter", "--manga", "1", "--title", "Robado", "--page", "x.webp")
		if !errors.Is(err, shared.ErrNotAuthor) {
			t.Errorf("expected ErrNotAuthor for someone else's work, got %v", err)
		}

		out = env.mustRun(t, "author", "dashboard", "--json")
		var dash dashboardJSON
		if err := json.Unmarshal([]byte(out), &dash); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if dash.Works != 1 || dash.Titles[0].Title != "Mi obra" {
			t.Errorf("unexpected dashboard %+v", dash)
		}
	})
}

func TestReaderCommands(t *testing.T) {
	t.Run("translate requires sign in", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.run(t, "reader", "translate", "--chapter", "orv-ch1")
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if calls := env.gateway.Calls(); len(calls) != 0 {
			t.Errorf("expected no gateway calls, got %v", calls)
		}
	})

	t.Run("translate spends one token", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, false)

		out := env.mustRun(t, "reader", "translate", "--chapter", "orv-ch1", "--page", "1")
		if !strings.Contains(out, "Sobrevive") || !strings.Contains(out, "AI tokens left: 2") {
			t.Errorf("unexpected output %q", out)
		}

		_, err := env.run(t, "reader", "translate", "--chapter", "orv-ch1", "--page", "2")
		if !errors.Is(err, shared.ErrPageOutOfRange) {
			t.Errorf("expected ErrPageOutOfRange, got %v", err)
		}

		_, err = env.run(t, "reader", "translate", "--chapter", "orv-ch1", "--lang", "xx")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("translate without a gateway", func(t *testing.T) {
		env := newTestEnv(t)
		env.runner.gateway = nil

		_, err := env.run(t, "reader", "translate", "--chapter", "orv-ch1")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("listen narrates to the end", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, false)

		out := env.mustRun(t, "reader", "listen", "--chapter", "orv-ch1", "--lang", "es")
		if !strings.Contains(out, "[es-ES] Dokja abre la novela en el metro.") {
			t.Errorf("expected the caption, got %q", out)
		}
		if !strings.Contains(out, "Narration finished") {
			t.Errorf("expected narration to finish, got %q", out)
		}

		languages, err := env.runner.scripts.Languages("orv-ch1")
		if err != nil || len(languages) != 1 || languages[0] != models.Spanish {
			t.Errorf("expected the script to be saved, got %v (%v)", languages, err)
		}
	})

	t.Run("export", func(t *testing.T) {
		env := newTestEnv(t)
		dir := filepath.Join(t.TempDir(), "scripts")

		out := env.mustRun(t, "reader", "export", "--chapter", "orv-ch1", "--lang", "es,en", "--format", "markdown", "--output", dir)
		if !strings.Contains(out, "Exported: 2/2 languages") {
			t.Errorf("unexpected output %q", out)
		}
		th.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
	})
}
