package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/elk-language/go-prompt"
	istrings "github.com/elk-language/go-prompt/strings"

	"openai-cli/internal/attach"
	"openai-cli/internal/commands"
	"openai-cli/internal/config"
	"openai-cli/internal/export"
	"openai-cli/internal/models"
	"openai-cli/internal/ui"
)

// runInteractive starts the REPL. Each line is either a slash command or a
// prompt raced across the active models. Ctrl+C while a batch runs cancels
// the batch; at the prompt it exits.
func (app *App) runInteractive() {
	fmt.Println(ui.TitleStyle.Render("openai-cli") + " " + ui.DimStyle.Render(version))
	fmt.Printf("Models: %s\n", app.activeLabel())
	fmt.Println("Type /help for commands, Ctrl+C or Ctrl+D to quit")
	fmt.Println("End a line with \\ for multiline input")
	fmt.Println()

	var buffered []string
	executor := func(input string) {
		if app.exitFlag {
			return
		}
		if strings.HasSuffix(input, "\\") {
			buffered = append(buffered, strings.TrimSuffix(input, "\\"))
			fmt.Print("... ")
			return
		}
		if len(buffered) > 0 {
			input = strings.Join(append(buffered, input), "\n")
			buffered = nil
		}
		app.execute(input)
	}

	p := prompt.New(
		executor,
		prompt.WithCompleter(app.completer),
		prompt.WithPrefix("> "),
		prompt.WithTitle("openai-cli"),
		prompt.WithPrefixTextColor(prompt.Green),
		prompt.WithSuggestionBGColor(prompt.DarkBlue),
		prompt.WithSuggestionTextColor(prompt.White),
		prompt.WithSelectedSuggestionBGColor(prompt.Cyan),
		prompt.WithSelectedSuggestionTextColor(prompt.Black),
		prompt.WithDescriptionBGColor(prompt.DarkBlue),
		prompt.WithDescriptionTextColor(prompt.LightGray),
		prompt.WithMaxSuggestion(10),
		prompt.WithExitChecker(func(in string, breakline bool) bool {
			return app.exitFlag
		}),
		prompt.WithKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(p *prompt.Prompt) bool {
				fmt.Println("\nGoodbye!")
				app.exitFlag = true
				return false
			},
		}),
		prompt.WithKeyBind(prompt.KeyBind{
			Key: prompt.ControlD,
			Fn: func(p *prompt.Prompt) bool {
				if p.Buffer().Text() == "" {
					fmt.Println("Goodbye!")
					app.exitFlag = true
				}
				return false
			},
		}),
	)

	p.Run()
}

// execute handles one complete input line
func (app *App) execute(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	if cmd := commands.Parse(input); cmd != nil {
		app.handleCommand(cmd)
		return
	}

	req, err := commands.Resolve(input, app.catalog, app.active)
	if err != nil {
		app.term.Error(err)
		return
	}
	req.Prompt = attach.Prompt(app.pending, req.Prompt)
	app.pending = nil

	// the prompt library restores cooked mode while we run, so SIGINT
	// reaches us here instead of the key binding
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	if _, err := app.runBatch(ctx, req); err != nil {
		app.term.Error(err)
	}
	fmt.Println()
}

func (app *App) handleCommand(cmd commands.Command) {
	switch c := cmd.(type) {
	case commands.Help:
		app.term.Print(ui.HelpContent())

	case commands.ListModels:
		app.term.Print(ui.ModelListing(app.providerRows(), app.active))

	case commands.ListCommands:
		if app.store == nil {
			app.term.Error(errors.New("command catalog unavailable"))
			return
		}
		cmds, err := app.store.ListCommands()
		if err != nil {
			app.term.Error(err)
			return
		}
		app.term.Print(ui.CatalogListing(cmds))

	case commands.SetModels:
		if len(c.Specs) > 0 {
			if _, err := app.resolveSpecs(c.Specs); err != nil {
				app.term.Error(err)
				return
			}
		}
		app.active = c.Specs
		app.term.Print("Models: " + app.activeLabel())

	case commands.Attach:
		a, err := attach.Load(c.Path)
		if err != nil {
			app.term.Error(err)
			return
		}
		app.pending = append(app.pending, a)
		app.term.Print(fmt.Sprintf("Attached %s (%d pending)", a.Path, len(app.pending)))

	case commands.Save:
		if app.transcript == nil {
			app.term.Error(errors.New("nothing to save yet"))
			return
		}
		app.transcript.Title = c.Title
		path, err := export.Write(app.transcript, config.DataDir())
		if err != nil {
			app.term.Error(err)
			return
		}
		app.term.Print("Saved " + path)

	case commands.Clear:
		app.history = nil
		app.pending = nil
		app.transcript = nil
		app.term.Print("Conversation cleared.")

	case commands.Exit:
		fmt.Println("Goodbye!")
		app.exitFlag = true

	case commands.ParseError:
		app.term.Error(errors.New(c.Message))
	}
}

func (app *App) activeLabel() string {
	specs, err := app.resolveSpecs(app.active)
	if err != nil {
		return err.Error()
	}
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}

// completer suggests slash commands, models after /model and catalog
// command names at the start of a prompt.
func (app *App) completer(d prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
	text := d.TextBeforeCursor()
	endIndex := d.CurrentRuneIndex()
	w := d.GetWordBeforeCursor()
	startIndex := endIndex - istrings.RuneCountInString(w)

	if strings.HasPrefix(strings.ToLower(text), "/model ") {
		suggestions := []prompt.Suggest{{Text: "default", Description: "Use the configured default"}}
		for _, name := range app.registry.Enabled() {
			p := app.cfg.Providers[name]
			spec := models.Spec{Provider: name, Model: p.DefaultModel}
			suggestions = append(suggestions, prompt.Suggest{Text: spec.String(), Description: p.Kind})
		}
		return prompt.FilterHasPrefix(suggestions, w, true), startIndex, endIndex
	}

	if strings.HasPrefix(text, "/") {
		var suggestions []prompt.Suggest
		for _, e := range commands.Entries() {
			suggestions = append(suggestions, prompt.Suggest{Text: e.Text, Description: e.Description})
		}
		return prompt.FilterHasPrefix(suggestions, w, true), startIndex, endIndex
	}

	// catalog names only make sense as the first word
	if app.store == nil || strings.Contains(text, " ") || w == "" {
		return []prompt.Suggest{}, startIndex, endIndex
	}
	cmds, err := app.store.ListCommands()
	if err != nil {
		app.logger.Debug("completion: list commands", "error", err)
		return []prompt.Suggest{}, startIndex, endIndex
	}
	suggestions := make([]prompt.Suggest, 0, len(cmds))
	for _, c := range cmds {
		suggestions = append(suggestions, prompt.Suggest{Text: c.Name, Description: c.Description})
	}
	return prompt.FilterHasPrefix(suggestions, w, true), startIndex, endIndex
}
