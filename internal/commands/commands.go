// Package commands handles slash commands and catalog routing for the REPL.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"openai-cli/internal/db"
	"openai-cli/internal/models"
)

// Command interface for all command types
type Command interface {
	Type() string
}

// Help returns help text
type Help struct{}

func (Help) Type() string { return "help" }

// ListModels lists configured providers and the active model list
type ListModels struct{}

func (ListModels) Type() string { return "models" }

// ListCommands lists catalog commands
type ListCommands struct{}

func (ListCommands) Type() string { return "commands" }

// SetModels replaces the active model list for plain prompts.
// An empty list restores the configured default.
type SetModels struct {
	Specs []models.Spec
}

func (SetModels) Type() string { return "model" }

// Attach queues a file or directory for the next prompt
type Attach struct {
	Path string
}

func (Attach) Type() string { return "attach" }

// Save writes the session transcript to disk
type Save struct {
	Title string
}

func (Save) Type() string { return "save" }

// Clear drops the conversation history
type Clear struct{}

func (Clear) Type() string { return "clear" }

// Exit leaves the REPL
type Exit struct{}

func (Exit) Type() string { return "exit" }

// ParseError represents a command parsing error
type ParseError struct {
	Message string
}

func (ParseError) Type() string { return "error" }

// Parse parses user input and returns the appropriate Command.
// Returns nil if the input is not a slash command.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help":
		return Help{}

	case "/models":
		return ListModels{}

	case "/commands":
		return ListCommands{}

	case "/model":
		if len(args) == 1 && strings.EqualFold(args[0], "default") {
			return SetModels{}
		}
		if len(args) == 0 {
			return ParseError{Message: "/model requires provider/model (or 'default')"}
		}
		specs := make([]models.Spec, 0, len(args))
		for _, arg := range args {
			spec, err := models.ParseSpec(arg)
			if err != nil {
				return ParseError{Message: err.Error()}
			}
			specs = append(specs, spec)
		}
		return SetModels{Specs: specs}

	case "/attach":
		path := strings.Join(args, " ")
		if path == "" {
			return ParseError{Message: "/attach requires a path"}
		}
		return Attach{Path: path}

	case "/save":
		return Save{Title: strings.Join(args, " ")}

	case "/clear":
		return Clear{}

	case "/exit", "/quit":
		return Exit{}

	default:
		return ParseError{Message: "unknown command: " + cmd}
	}
}

// Entry describes one slash command for help and completion
type Entry struct {
	Text        string
	Description string
}

// Entries lists the slash commands in display order.
func Entries() []Entry {
	return []Entry{
		{"/help", "Show this help"},
		{"/models", "List providers and the active models"},
		{"/commands", "List catalog commands"},
		{"/model", "Race these models: /model p/m [p/m ...] | default"},
		{"/attach", "Send a file or directory with the next prompt"},
		{"/save", "Save the session as markdown: /save [title]"},
		{"/clear", "Forget the conversation so far"},
		{"/exit", "Leave"},
	}
}

// HelpText returns the help text for all available commands.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, e := range Entries() {
		fmt.Fprintf(&b, "  %-10s - %s\n", e.Text, e.Description)
	}
	b.WriteString("\nAnything else is sent as a prompt. Start it with a catalog\n")
	b.WriteString("command name (see /commands) to use that command's prompt and models.")
	return b.String()
}

var ErrEmptyPrompt = errors.New("empty prompt")

// Catalog looks up stored commands by name
type Catalog interface {
	GetCommand(name string) (*db.Command, error)
}

// Request is one resolved batch: the prompt text and the models to race
type Request struct {
	Command string
	Prompt  string
	Specs   []models.Spec
}

// Resolve routes input through the catalog. When its first word names a
// command, that command's prompt is prepended and its models are used;
// otherwise the input goes to defaults unchanged. A nil catalog routes
// everything to defaults.
func Resolve(input string, catalog Catalog, defaults []models.Spec) (Request, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Request{}, ErrEmptyPrompt
	}
	if catalog == nil {
		return Request{Prompt: input, Specs: defaults}, nil
	}

	name, rest, _ := strings.Cut(input, " ")
	cmd, err := catalog.GetCommand(name)
	if errors.Is(err, db.ErrNotFound) {
		return Request{Prompt: input, Specs: defaults}, nil
	}
	if err != nil {
		return Request{}, fmt.Errorf("lookup %s: %w", name, err)
	}
	return apply(cmd, strings.TrimSpace(rest), defaults), nil
}

// ResolveNamed applies the named catalog command to input. Unlike Resolve
// the command must exist.
func ResolveNamed(name, input string, catalog Catalog, defaults []models.Spec) (Request, error) {
	if catalog == nil {
		return Request{}, fmt.Errorf("%w: %s", db.ErrNotFound, name)
	}
	cmd, err := catalog.GetCommand(name)
	if err != nil {
		return Request{}, err
	}
	req := apply(cmd, strings.TrimSpace(input), defaults)
	if req.Prompt == "" {
		return Request{}, ErrEmptyPrompt
	}
	return req, nil
}

func apply(cmd *db.Command, rest string, defaults []models.Spec) Request {
	prompt := cmd.Prompt
	switch {
	case prompt == "":
		prompt = rest
	case rest != "":
		prompt = prompt + "\n\n" + rest
	}

	specs := cmd.Models
	if len(specs) == 0 {
		specs = defaults
	}
	return Request{Command: cmd.Name, Prompt: prompt, Specs: specs}
}

// Builtins are seeded into an empty catalog on first run.
func Builtins() []db.Command {
	return []db.Command{
		{
			Name:        "explain",
			Description: "Explain a concept or a piece of code",
			Prompt:      "Explain the following clearly, with a short example where it helps:",
		},
		{
			Name:        "review",
			Description: "Review code for bugs and style",
			Prompt:      "Review the following code. List concrete bugs first, then style issues:",
		},
		{
			Name:        "compare",
			Description: "Ask several providers at once",
			Models: []models.Spec{
				{Provider: "openai"},
				{Provider: "anthropic"},
				{Provider: "deepseek"},
			},
		},
	}
}
