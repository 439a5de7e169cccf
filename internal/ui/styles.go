// internal/ui/styles.go
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Cyan    = lipgloss.Color("#00FFFF")
	Green   = lipgloss.Color("#00FF00")
	Yellow  = lipgloss.Color("#FFD700")
	Orange  = lipgloss.Color("#FFA500")
	Red     = lipgloss.Color("#FF6B6B")
	Magenta = lipgloss.Color("#FF00FF")
	SkyBlue = lipgloss.Color("#87CEEB")
	Dim     = lipgloss.Color("#555555")
	White   = lipgloss.Color("#FFFFFF")

	// Provider colors
	OpenAIColor     = Green
	AnthropicColor  = Cyan
	DeepSeekColor   = SkyBlue
	OpenRouterColor = Magenta
	OllamaColor     = Yellow
	GrokColor       = Orange

	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Dim)

	// Status indicators
	StatusOK   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	StatusWarn = lipgloss.NewStyle().Foreground(Orange).Bold(true)
	StatusCrit = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

// ProviderStyle returns the header style for a provider name
func ProviderStyle(provider string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ProviderColor(provider)).Bold(true)
}

// ProviderColor returns the color for a provider name
func ProviderColor(provider string) lipgloss.Color {
	switch provider {
	case "openai":
		return OpenAIColor
	case "anthropic":
		return AnthropicColor
	case "deepseek":
		return DeepSeekColor
	case "openrouter":
		return OpenRouterColor
	case "ollama":
		return OllamaColor
	case "grok", "xai":
		return GrokColor
	default:
		return White
	}
}
