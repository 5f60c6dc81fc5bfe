package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/auth"
	"github.com/desertthunder/aleerpe/internal/repositories"
	"github.com/desertthunder/aleerpe/internal/services"
	"github.com/desertthunder/aleerpe/internal/shared"
	"github.com/desertthunder/aleerpe/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies backed by the database are wired on first use by [Runner.prepare], once the --config flag is known.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	ownsDB     bool
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
	browse     func(url string) error

	users    *repositories.UserRepository
	mangas   *repositories.MangaRepository
	chapters *repositories.ChapterRepository
	projects *repositories.ProjectRepository
	scripts  *repositories.ScriptRepository
	auth     *auth.Manager
	gateway  services.Gateway
	pages    *services.PageLoader
	engine   *tasks.ScriptEngine
	synth    services.Synthesizer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB              // when set, the runner is wired immediately and never opens its own database
	Gateway    services.Gateway     // overrides the configured Gemini gateway
	Synth      services.Synthesizer // overrides the configured speech backend
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
	Browse     func(url string) error // defaults to [shared.OpenBrowser]
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Browse == nil {
		opts.Browse = shared.OpenBrowser
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
		browse:     opts.Browse,
		gateway:    opts.Gateway,
		synth:      opts.Synth,
	}
	if opts.DB != nil {
		r.wire(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, catalogCommand, authorCommand, fundingCommand, readerCommand, readCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it wires afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadConfig reads the file named by --config. A missing file keeps the current (default) configuration.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		return nil
	}
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	r.config = config
	return nil
}

// prepare loads the configuration, opens the database and wires the repositories.
func (r *Runner) prepare(cmd *cli.Command) error {
	if r.db != nil {
		return nil
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if err := shared.ConfigureLogLevel(r.logger, r.config.Logging.Level); err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.ownsDB = true
	r.wire(db)
	return nil
}

// wire builds the repositories, the account manager and the gateway stack over db.
func (r *Runner) wire(db *sql.DB) {
	r.db = db
	r.users = repositories.NewUserRepository(db)
	r.mangas = repositories.NewMangaRepository(db)
	r.chapters = repositories.NewChapterRepository(db)
	r.projects = repositories.NewProjectRepository(db)
	r.scripts = repositories.NewScriptRepository(db)

	r.auth = auth.NewManager(r.users, auth.ManagerOpts{
		SessionPath: r.config.Session.Path,
		Logger:      shared.WithLogger(r.logger, "component", "auth"),
	})
	if err := r.auth.Restore(); err != nil {
		r.logger.Warn("could not restore session", "error", err)
	}

	gw := r.config.Credentials.Gateway
	if r.gateway == nil && gw.HasCredentials() {
		svc, err := services.NewGeminiService(services.GeminiOpts{
			BaseURL:     gw.BaseURL,
			APIKey:      gw.APIKey,
			AccessToken: gw.AccessToken,
			Model:       gw.Model,
			Timeout:     gw.Timeout(),
			RateLimit:   gw.RateLimit,
			HTTPClient:  r.httpClient,
			Logger:      shared.WithLogger(r.logger, "component", "gemini"),
		})
		if err != nil {
			r.logger.Warn("gateway disabled", "error", err)
		} else {
			r.gateway = svc
		}
	}

	r.pages = services.NewPageLoader(r.config.Reader.AssetsDir, r.httpClient)
	if r.gateway != nil {
		r.engine = tasks.NewScriptEngine(r.gateway, r.pages, repositories.NewScriptCacheAdapter(r.scripts), tasks.ScriptEngineOpts{
			Workers: r.config.Reader.Workers,
			Logger:  shared.WithLogger(r.logger, "component", "scripts"),
		})
	}
}

// Close releases the database opened by [Runner.prepare].
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// requireGateway fails when no AI gateway is configured.
func (r *Runner) requireGateway() error {
	if r.gateway == nil {
		return fmt.Errorf("%w: set credentials.gateway.api_key in %s", shared.ErrServiceUnavailable, r.configPathOrDefault())
	}
	return nil
}

func (r *Runner) configPathOrDefault() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
