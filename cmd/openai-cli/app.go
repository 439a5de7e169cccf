package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"openai-cli/internal/attach"
	"openai-cli/internal/commands"
	"openai-cli/internal/config"
	"openai-cli/internal/db"
	"openai-cli/internal/export"
	"openai-cli/internal/logging"
	"openai-cli/internal/models"
	"openai-cli/internal/orchestrator"
	"openai-cli/internal/telemetry"
	"openai-cli/internal/ui"
	"openai-cli/internal/webhook"
)

var errNoProviders = errors.New("no usable providers: set OPENAI_API_KEY, ANTHROPIC_API_KEY or configure one in config.yaml")

// App holds the process-wide state shared by one-shot and interactive runs
type App struct {
	cfg      *config.Config
	opts     *options
	logger   *slog.Logger
	closers  []func()
	registry *models.Registry
	orch     *orchestrator.Orchestrator
	store    *db.Store
	catalog  commands.Catalog
	term     *ui.Terminal
	hooks    *webhook.Client

	// models raced by plain prompts; empty means the registry default
	active []models.Spec

	// user and winning assistant turns of the interactive session
	history []models.Message

	// attachments waiting for the next prompt
	pending []attach.Attachment

	transcript *export.Transcript

	exitFlag bool
}

func newApp(opts *options) (*App, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = filepath.Join(config.StateDir(), "openai-cli.log")
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       logFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Verbose:    opts.verbose,
	})
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, opts: opts, logger: logger}
	app.closers = append(app.closers, func() { closeLog() })

	if cfg.Telemetry.Enabled {
		dir := cfg.Telemetry.Dir
		if dir == "" {
			dir = filepath.Join(config.StateDir(), "telemetry")
		}
		shutdown, err := telemetry.Init(context.Background(), dir, version, logger)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			app.closers = append(app.closers, shutdown)
		}
	}

	if cfg.Hooks.URL != "" {
		app.hooks = webhook.New(cfg.Hooks.URL, logger)
		app.closers = append(app.closers, app.hooks.Flush)
	}

	app.registry = models.NewRegistry(cfg)
	app.orch = orchestrator.New(app.registry, logger)
	app.openCatalog()

	for _, raw := range opts.models {
		spec, err := models.ParseSpec(raw)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.active = append(app.active, spec)
	}

	app.term = ui.NewTerminal(ui.Options{
		Out:      os.Stdout,
		Color:    cfg.UI.Color,
		Markdown: cfg.UI.RenderMarkdown || opts.render,
		Spinner:  cfg.UI.Spinner,
		Logger:   logger,
	})

	logger.Debug("started",
		"version", version,
		"providers", app.registry.Enabled(),
		"default", app.registry.DefaultSpec().String(),
	)
	return app, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// openCatalog opens the command catalog. The CLI works without it.
func (app *App) openCatalog() {
	var store *db.Store
	var err error
	if app.cfg.Database.Path != "" {
		store, err = db.OpenPath(app.cfg.Database.Path)
	} else {
		store, err = db.Open()
	}
	if err != nil {
		app.logger.Warn("command catalog unavailable", "error", err)
		return
	}

	if n, err := store.Seed(commands.Builtins()); err != nil {
		app.logger.Warn("seeding command catalog", "error", err)
	} else if n > 0 {
		app.logger.Info("seeded command catalog", "commands", n)
	}

	app.store = store
	app.catalog = store
}

func (app *App) Close() {
	if app.store != nil {
		app.store.Close()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
}

// run handles the root command: a one-shot prompt from args or stdin, or
// the interactive session.
func (app *App) run(args []string) error {
	if app.registry.Count() == 0 {
		return errNoProviders
	}

	atts, err := attach.LoadAll(app.opts.files)
	if err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	if prompt == "" && !stdinIsTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	if prompt == "" && app.opts.command == "" {
		app.pending = atts
		app.runInteractive()
		return nil
	}

	req, err := app.resolve(prompt)
	if err != nil {
		return err
	}
	req.Prompt = attach.Prompt(atts, req.Prompt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := app.runBatch(ctx, req)
	if err != nil {
		return err
	}
	if summary.AllFailed() {
		return errors.New(summary.String())
	}
	return nil
}

func (app *App) resolve(input string) (commands.Request, error) {
	if app.opts.command != "" {
		return commands.ResolveNamed(app.opts.command, input, app.catalog, app.active)
	}
	return commands.Resolve(input, app.catalog, app.active)
}

// runBatch races req across its models and records the winner's answer in
// the conversation history.
func (app *App) runBatch(ctx context.Context, req commands.Request) (orchestrator.Summary, error) {
	specs, err := app.resolveSpecs(req.Specs)
	if err != nil {
		return orchestrator.Summary{}, err
	}
	messages := app.conversation(req.Prompt)

	scope := orchestrator.NewScope(ctx)
	defer scope.Close()

	coord := orchestrator.NewCoordinator(app.logger)
	detach := app.term.Attach(coord)
	defer detach()
	if app.hooks != nil {
		defer app.hooks.Attach(coord)()
		app.hooks.BatchStarted(req.Command, specs)
	}

	var results []orchestrator.ModelResult
	coord.OnAllCompleted(func(rs []orchestrator.ModelResult) { results = rs })

	cancelShown := make(chan struct{})
	stopListener := scope.OnCancel(func() {
		defer close(cancelShown)
		app.term.Cancelled(coord.Outstanding())
		coord.ResetState()
	})

	app.logger.Info("batch", "command", req.Command, "models", len(specs))
	app.term.Begin(specs)

	if _, err := app.orch.ExecuteModelsRace(scope.Context(), specs, messages, coord, app.term); err != nil {
		stopListener()
		return orchestrator.Summary{}, err
	}
	if !stopListener() {
		<-cancelShown
	}

	summary := orchestrator.Summarize(results)
	app.term.Finish(summary)

	for _, r := range results {
		if r.Winner && r.Success {
			app.history = append(app.history,
				models.Message{Role: models.RoleUser, Content: req.Prompt},
				models.Message{Role: models.RoleAssistant, Content: r.Text},
			)
			if app.transcript == nil {
				app.transcript = export.NewTranscript()
			}
			app.transcript.Add(export.Turn{
				Prompt:    req.Prompt,
				Model:     r.Spec.String(),
				Answer:    r.Text,
				Responded: summary.Succeeded,
				Raced:     summary.Total,
			})
			break
		}
	}
	return summary, nil
}

// resolveSpecs pins every spec to a concrete provider and model so
// coordinator keys and headers name what actually ran. An empty list means
// the default model.
func (app *App) resolveSpecs(specs []models.Spec) ([]models.Spec, error) {
	if len(specs) == 0 {
		specs = []models.Spec{{}}
	}
	out := make([]models.Spec, 0, len(specs))
	for _, s := range specs {
		resolved, _, err := app.registry.Resolve(&s)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (app *App) conversation(prompt string) []models.Message {
	messages := make([]models.Message, 0, len(app.history)+2)
	if sp := app.cfg.Defaults.SystemPrompt; sp != "" {
		messages = append(messages, models.Message{Role: models.RoleSystem, Content: sp})
	}
	messages = append(messages, app.history...)
	return append(messages, models.Message{Role: models.RoleUser, Content: prompt})
}

func (app *App) providerRows() []ui.ProviderRow {
	names := app.cfg.ProviderNames()
	rows := make([]ui.ProviderRow, 0, len(names))
	for _, name := range names {
		p := app.cfg.Providers[name]
		rows = append(rows, ui.ProviderRow{
			Name:         name,
			Kind:         p.Kind,
			DefaultModel: p.DefaultModel,
			Usable:       app.registry.Get(name) != nil,
		})
	}
	return rows
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("error: "+err.Error()))
}
