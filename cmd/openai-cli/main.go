package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// options holds the root command flags
type options struct {
	configPath string
	models     []string
	command    string
	files      []string
	verbose    bool
	render     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "openai-cli [prompt...]",
		Short: "Race one prompt across several LLM providers",
		Long: `openai-cli sends a prompt to one or more models at once. The first model
to produce text streams live; the others are printed as complete blocks when
they finish.

Without a prompt it starts an interactive session.

Examples:
  openai-cli "What is a goroutine?"
  openai-cli -m openai/gpt-4o -m anthropic "Compare mutexes and channels"
  openai-cli -c review < main.go
  openai-cli -c review -f internal/db
  openai-cli                              # Interactive mode`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				printError(err)
				return err
			}
			defer app.Close()

			if err := app.run(args); err != nil {
				app.term.Error(err)
				return err
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/openai-cli/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Also write logs to stderr")
	rootCmd.Flags().StringArrayVarP(&opts.models, "model", "m", nil, "Model to race as provider/model (repeatable)")
	rootCmd.Flags().StringVarP(&opts.command, "command", "c", "", "Apply a catalog command to the prompt")
	rootCmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "Attach a file or directory to the prompt (repeatable)")
	rootCmd.Flags().BoolVarP(&opts.render, "render", "r", false, "Render finished blocks as markdown")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		printError(err)
		return err
	})
	rootCmd.AddCommand(newCommandsCmd(opts))

	return rootCmd
}
