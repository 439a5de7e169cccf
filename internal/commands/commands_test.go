package commands

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"openai-cli/internal/db"
	"openai-cli/internal/models"
)

func TestParse_NonSlashCommand(t *testing.T) {
	tests := []string{
		"hello world",
		"",
		"   ",
		"help",
		"review this code",
		"a/b is not a command",
	}

	for _, input := range tests {
		result := Parse(input)
		if result != nil {
			t.Errorf("Parse(%q) = %v, want nil", input, result)
		}
	}
}

func TestParse_Simple(t *testing.T) {
	tests := []struct {
		input    string
		wantType string
	}{
		{"/help", "help"},
		{"/HELP", "help"},
		{"  /help extra args ignored ", "help"},
		{"/models", "models"},
		{"/commands", "commands"},
		{"/clear", "clear"},
		{"/save", "save"},
		{"/exit", "exit"},
		{"/quit", "exit"},
		{"/Exit", "exit"},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		if result == nil {
			t.Errorf("Parse(%q) = nil, want %s", tt.input, tt.wantType)
			continue
		}
		if result.Type() != tt.wantType {
			t.Errorf("Parse(%q).Type() = %q, want %q", tt.input, result.Type(), tt.wantType)
		}
	}
}

func TestParse_SetModels(t *testing.T) {
	tests := []struct {
		input string
		want  []models.Spec
	}{
		{"/model openai/gpt-4o", []models.Spec{{Provider: "openai", Model: "gpt-4o"}}},
		{"/model anthropic", []models.Spec{{Provider: "anthropic"}}},
		{"/model openai/gpt-4o deepseek/deepseek-chat", []models.Spec{
			{Provider: "openai", Model: "gpt-4o"},
			{Provider: "deepseek", Model: "deepseek-chat"},
		}},
		{"/model openrouter/meta/llama-3", []models.Spec{{Provider: "openrouter", Model: "meta/llama-3"}}},
		{"/model default", nil},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		sm, ok := result.(SetModels)
		if !ok {
			t.Errorf("Parse(%q) = %T, want SetModels", tt.input, result)
			continue
		}
		if fmt.Sprint(sm.Specs) != fmt.Sprint(tt.want) {
			t.Errorf("Parse(%q).Specs = %v, want %v", tt.input, sm.Specs, tt.want)
		}
	}
}

func TestParse_Attach(t *testing.T) {
	result := Parse("/attach  docs/My Notes.md ")
	a, ok := result.(Attach)
	if !ok {
		t.Fatalf("Parse() = %T, want Attach", result)
	}
	if a.Path != "docs/My Notes.md" {
		t.Errorf("Path = %q", a.Path)
	}
}

func TestParse_Save(t *testing.T) {
	if s, ok := Parse("/save Cache design").(Save); !ok || s.Title != "Cache design" {
		t.Errorf("Parse(/save Cache design) = %#v", Parse("/save Cache design"))
	}
	if s, ok := Parse("/save").(Save); !ok || s.Title != "" {
		t.Errorf("Parse(/save) = %#v", Parse("/save"))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input   string
		wantMsg string
	}{
		{"/model", "/model requires"},
		{"/attach", "/attach requires a path"},
		{"/model /gpt-4o", "invalid model spec"},
		{"/model openai/", "invalid model spec"},
		{"/unknown", "unknown command: /unknown"},
		{"/new debate", "unknown command: /new"},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		pe, ok := result.(ParseError)
		if !ok {
			t.Errorf("Parse(%q) = %T, want ParseError", tt.input, result)
			continue
		}
		if !strings.Contains(pe.Message, tt.wantMsg) {
			t.Errorf("Parse(%q).Message = %q, want it to contain %q", tt.input, pe.Message, tt.wantMsg)
		}
		if pe.Type() != "error" {
			t.Errorf("Parse(%q).Type() = %q", tt.input, pe.Type())
		}
	}
}

func TestHelpText_ListsEveryCommand(t *testing.T) {
	help := HelpText()
	for _, e := range Entries() {
		if !strings.Contains(help, e.Text) {
			t.Errorf("HelpText() is missing %s", e.Text)
		}
		if Parse(e.Text) == nil {
			t.Errorf("Entries() lists %s but Parse does not recognize it", e.Text)
		}
	}
}

// fakeCatalog is an in-memory Catalog
type fakeCatalog struct {
	commands map[string]db.Command
	err      error
}

func (f *fakeCatalog) GetCommand(name string) (*db.Command, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, name)
	}
	return &c, nil
}

func TestResolve(t *testing.T) {
	defaults := []models.Spec{{Provider: "openai"}}
	pair := []models.Spec{{Provider: "openai"}, {Provider: "anthropic"}}

	catalog := &fakeCatalog{commands: map[string]db.Command{
		"review":  {Name: "review", Prompt: "Review:", Models: pair},
		"explain": {Name: "explain", Prompt: "Explain:"},
		"compare": {Name: "compare", Models: pair},
	}}

	tests := []struct {
		name        string
		input       string
		wantCommand string
		wantPrompt  string
		wantSpecs   []models.Spec
	}{
		{"plain prompt", "what is a goroutine", "", "what is a goroutine", defaults},
		{"command with models", "review func f() {}", "review", "Review:\n\nfunc f() {}", pair},
		{"command without models", "explain channels", "explain", "Explain:\n\nchannels", defaults},
		{"command without prompt", "compare tabs or spaces", "compare", "tabs or spaces", pair},
		{"command alone", "review", "review", "Review:", pair},
		{"trimmed", "  explain   select  ", "explain", "Explain:\n\nselect", defaults},
		{"case sensitive names", "Review this", "", "Review this", defaults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Resolve(tt.input, catalog, defaults)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if req.Command != tt.wantCommand {
				t.Errorf("Command = %q, want %q", req.Command, tt.wantCommand)
			}
			if req.Prompt != tt.wantPrompt {
				t.Errorf("Prompt = %q, want %q", req.Prompt, tt.wantPrompt)
			}
			if fmt.Sprint(req.Specs) != fmt.Sprint(tt.wantSpecs) {
				t.Errorf("Specs = %v, want %v", req.Specs, tt.wantSpecs)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	if _, err := Resolve("   ", &fakeCatalog{}, nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("empty input error = %v, want ErrEmptyPrompt", err)
	}

	broken := &fakeCatalog{err: errors.New("database is locked")}
	if _, err := Resolve("hello", broken, nil); err == nil {
		t.Error("catalog failure should be reported")
	}

	req, err := Resolve("hello", nil, []models.Spec{{Provider: "openai"}})
	if err != nil || req.Prompt != "hello" || len(req.Specs) != 1 {
		t.Errorf("nil catalog: req = %+v, err = %v", req, err)
	}
}

func TestResolveNamed(t *testing.T) {
	catalog := &fakeCatalog{commands: map[string]db.Command{
		"review":  {Name: "review", Prompt: "Review:"},
		"compare": {Name: "compare"},
	}}

	req, err := ResolveNamed("review", "main.go", catalog, nil)
	if err != nil {
		t.Fatalf("ResolveNamed() error = %v", err)
	}
	if req.Prompt != "Review:\n\nmain.go" || req.Command != "review" {
		t.Errorf("req = %+v", req)
	}

	if _, err := ResolveNamed("missing", "x", catalog, nil); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("missing command error = %v, want ErrNotFound", err)
	}
	if _, err := ResolveNamed("compare", "", catalog, nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("empty prompt error = %v, want ErrEmptyPrompt", err)
	}
}

func TestBuiltins(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Builtins() {
		if c.Name == "" || strings.ContainsAny(c.Name, " /") {
			t.Errorf("builtin name %q is not a single word", c.Name)
		}
		if seen[c.Name] {
			t.Errorf("duplicate builtin %q", c.Name)
		}
		seen[c.Name] = true
		if c.Prompt == "" && len(c.Models) == 0 {
			t.Errorf("builtin %q does nothing", c.Name)
		}
	}
}
