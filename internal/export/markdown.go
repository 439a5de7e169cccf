// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Turn is one exchange: the prompt and the answer that won its race
type Turn struct {
	Prompt    string
	Model     string
	Answer    string
	Responded int
	Raced     int
	Timestamp time.Time
}

// Transcript is an interactive session ready to be written out
type Transcript struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Turns     []Turn
}

// NewTranscript starts an empty transcript stamped with now
func NewTranscript() *Transcript {
	return &Transcript{ID: uuid.NewString(), CreatedAt: time.Now()}
}

// Add records a finished exchange
func (t *Transcript) Add(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	t.Turns = append(t.Turns, turn)
}

// Models lists the winning models in first-win order
func (t *Transcript) Models() []string {
	seen := make(map[string]bool)
	var out []string
	for _, turn := range t.Turns {
		if turn.Model == "" || seen[turn.Model] {
			continue
		}
		seen[turn.Model] = true
		out = append(out, turn.Model)
	}
	return out
}

// Markdown renders the transcript as a markdown document
func Markdown(t *Transcript) string {
	var sb strings.Builder

	title := t.Title
	if title == "" {
		title = "Session " + t.CreatedAt.Format("2006-01-02 15:04")
	}
	sb.WriteString("# " + title + "\n\n")

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "**Session ID:** `%s`\n\n", t.ID)
	fmt.Fprintf(&sb, "**Created:** %s\n\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if models := t.Models(); len(models) > 0 {
		fmt.Fprintf(&sb, "**Answered by:** %s\n\n", strings.Join(models, ", "))
	}
	sb.WriteString("---\n\n")

	for i, turn := range t.Turns {
		ts := turn.Timestamp.Format("15:04:05")

		fmt.Fprintf(&sb, "### [%s] Prompt\n\n", ts)
		writeQuoted(&sb, turn.Prompt)
		sb.WriteString("\n")

		fmt.Fprintf(&sb, "### %s", turn.Model)
		if turn.Raced > 1 {
			fmt.Fprintf(&sb, " (%d/%d responded)", turn.Responded, turn.Raced)
		}
		sb.WriteString("\n\n")
		// answers are usually markdown already
		sb.WriteString(strings.TrimSpace(turn.Answer))
		sb.WriteString("\n\n")

		if i < len(t.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Exported from openai-cli on %s*\n", time.Now().Format("2006-01-02 15:04:05"))
	return sb.String()
}

// writeQuoted blockquotes prose; content with code fences is left as-is
func writeQuoted(sb *strings.Builder, content string) {
	content = strings.TrimSpace(content)
	if containsCodeBlock(content) {
		sb.WriteString(content)
		sb.WriteString("\n")
		return
	}
	for _, line := range strings.Split(content, "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// Write saves the transcript to dir/transcripts/YYYY-MM-DD-title.md and
// returns the path.
func Write(t *Transcript, dir string) (string, error) {
	name := t.Title
	if name == "" {
		name = t.CreatedAt.Format("150405")
	}
	filename := fmt.Sprintf("%s-%s.md", t.CreatedAt.Format("2006-01-02"), sanitizeFilename(name))

	outDir := filepath.Join(dir, "transcripts")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create transcripts directory: %w", err)
	}

	path := filepath.Join(outDir, filename)
	if err := os.WriteFile(path, []byte(Markdown(t)), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// sanitizeFilename removes/replaces characters unsuitable for filenames
func sanitizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			sb.WriteRune(r)
		}
	}
	result := sb.String()

	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if result == "" {
		result = "session"
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}

func containsCodeBlock(content string) bool {
	return strings.Contains(content, "```")
}
