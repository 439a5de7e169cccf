package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"openai-cli/internal/db"
	"openai-cli/internal/models"
	"openai-cli/internal/ui"
)

// newCommandsCmd manages the command catalog
func newCommandsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Manage catalog commands",
		Long: `Catalog commands are named prompts with their own model list. Start a
prompt with a command name, or pass -c name, to use one.`,
	}
	cmd.AddCommand(newCommandsListCmd(opts), newCommandsAddCmd(opts), newCommandsRemoveCmd(opts))
	return cmd
}

// withStore runs fn against the catalog of a fully configured app
func withStore(opts *options, fn func(app *App) error) error {
	app, err := newApp(opts)
	if err != nil {
		printError(err)
		return err
	}
	defer app.Close()

	if app.store == nil {
		err := errors.New("command catalog unavailable (see log for details)")
		app.term.Error(err)
		return err
	}
	if err := fn(app); err != nil {
		app.term.Error(err)
		return err
	}
	return nil
}

func newCommandsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(app *App) error {
				cmds, err := app.store.ListCommands()
				if err != nil {
					return err
				}
				app.term.Print(ui.CatalogListing(cmds))
				return nil
			})
		},
	}
}

func newCommandsAddCmd(opts *options) *cobra.Command {
	var description, promptText string
	var specs []string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a catalog command",
		Example: `  openai-cli commands add review --prompt "Review this code:" -m openai/gpt-4o -m anthropic
  openai-cli commands add trio -m openai -m anthropic -m deepseek`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := db.Command{Name: args[0], Description: description, Prompt: promptText}
			for _, raw := range specs {
				spec, err := models.ParseSpec(raw)
				if err != nil {
					printError(err)
					return err
				}
				c.Models = append(c.Models, spec)
			}
			if c.Prompt == "" && len(c.Models) == 0 {
				err := errors.New("a command needs a --prompt, a --model, or both")
				printError(err)
				return err
			}

			return withStore(opts, func(app *App) error {
				if err := app.store.AddCommand(c); err != nil {
					return err
				}
				app.term.Print(fmt.Sprintf("Saved %s.", c.Name))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Short description")
	cmd.Flags().StringVarP(&promptText, "prompt", "p", "", "Text prepended to the user's prompt")
	cmd.Flags().StringArrayVarP(&specs, "model", "m", nil, "Model to race as provider/model (repeatable)")
	return cmd
}

func newCommandsRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a catalog command",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(app *App) error {
				if err := app.store.RemoveCommand(args[0]); err != nil {
					return err
				}
				app.term.Print(fmt.Sprintf("Removed %s.", args[0]))
				return nil
			})
		},
	}
}
