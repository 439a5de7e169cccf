// internal/ui/help.go
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"openai-cli/internal/commands"
)

var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Yellow)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	helpCmdStyle = lipgloss.NewStyle().
			Foreground(Magenta)

	helpDimStyle = lipgloss.NewStyle().
			Foreground(Dim)
)

// HelpContent returns the formatted REPL help
func HelpContent() string {
	var content strings.Builder

	content.WriteString(helpTitleStyle.Render("OPENAI-CLI HELP"))
	content.WriteString("\n\n")

	content.WriteString(helpSectionStyle.Render("SLASH COMMANDS"))
	content.WriteString("\n")
	for _, e := range commands.Entries() {
		cmd := helpCmdStyle.Width(12).Render(e.Text)
		content.WriteString("  " + cmd + "  " + e.Description + "\n")
	}

	content.WriteString("\n")
	content.WriteString(helpSectionStyle.Render("KEYS"))
	content.WriteString("\n")
	keys := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Cancel the running batch (exit when idle)"},
		{"Ctrl+D", "Exit on an empty line"},
		{"Tab", "Complete commands and models"},
	}
	for _, k := range keys {
		key := helpKeyStyle.Width(12).Render(k.key)
		content.WriteString("  " + key + "  " + k.desc + "\n")
	}

	content.WriteString("\n")
	content.WriteString(helpSectionStyle.Render("HOW A PROMPT RUNS"))
	content.WriteString("\n")
	protocol := []string{
		"Every selected model receives the prompt at the same time.",
		"The first one to produce text streams live; the rest are",
		"printed as complete blocks when they finish.",
		"Start a prompt with a catalog command name to use its",
		"prompt and model list (see /commands).",
	}
	for _, line := range protocol {
		content.WriteString("  " + helpDimStyle.Render(line) + "\n")
	}

	return content.String()
}
