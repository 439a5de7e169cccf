// Package attach turns local files and directories into prompt context.
package attach

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileSize is the largest file that will be attached (1MB)
const MaxFileSize = 1024 * 1024

// maxDepth bounds directory trees
const maxDepth = 3

var (
	ErrSensitivePath = errors.New("access to sensitive path denied")
	ErrTooLarge      = errors.New("file too large")
)

// Attachment is one file (or directory tree) to send along with a prompt
type Attachment struct {
	Path    string
	Content string
	Dir     bool
}

// Load reads a file, or summarizes a directory as a tree.
func Load(path string) (Attachment, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := ValidatePath(absPath); err != nil {
		return Attachment{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		var sb strings.Builder
		if err := walkDir(absPath, "", &sb, 0); err != nil {
			return Attachment{}, err
		}
		return Attachment{Path: absPath, Content: sb.String(), Dir: true}, nil
	}

	if info.Size() > MaxFileSize {
		return Attachment{}, fmt.Errorf("%w: %s (%d bytes, max %d)", ErrTooLarge, path, info.Size(), MaxFileSize)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Attachment{Path: absPath, Content: string(content)}, nil
}

// LoadAll loads every path, stopping at the first failure.
func LoadAll(paths []string) ([]Attachment, error) {
	atts := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := Load(p)
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	return atts, nil
}

// Prompt prefixes prompt with the attachments as fenced blocks.
func Prompt(atts []Attachment, prompt string) string {
	if len(atts) == 0 {
		return prompt
	}

	var sb strings.Builder
	for _, a := range atts {
		if a.Dir {
			fmt.Fprintf(&sb, "Directory %s:\n```\n", a.Path)
		} else {
			fmt.Fprintf(&sb, "File %s:\n```%s\n", a.Path, language(a.Path))
		}
		sb.WriteString(a.Content)
		if !strings.HasSuffix(a.Content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}
	sb.WriteString(prompt)
	return sb.String()
}

func walkDir(path, prefix string, sb *strings.Builder, depth int) error {
	if depth > maxDepth {
		sb.WriteString(prefix + "  ...\n")
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	// directories first, then files
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var filtered []os.DirEntry
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || isExcludedDir(name) {
			continue
		}
		filtered = append(filtered, e)
	}

	for i, entry := range filtered {
		isLast := i == len(filtered)-1
		connector := "|-"
		if isLast {
			connector = "`-"
		}

		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		fmt.Fprintf(sb, "%s%s %s\n", prefix, connector, name)

		if entry.IsDir() {
			newPrefix := prefix + "  "
			if !isLast {
				newPrefix = prefix + "| "
			}
			if err := walkDir(filepath.Join(path, entry.Name()), newPrefix, sb, depth+1); err != nil {
				sb.WriteString(newPrefix + "  (error reading)\n")
			}
		}
	}
	return nil
}

// ValidatePath rejects traversal, missing paths and credentials.
func ValidatePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if filepath.Clean(absPath) != absPath && strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	// checked before existence so credentials are never probed
	if isSensitivePath(absPath) {
		return fmt.Errorf("%w: %s", ErrSensitivePath, path)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", absPath)
	} else if err != nil {
		return fmt.Errorf("cannot access path: %w", err)
	}
	return nil
}

// language returns the fence tag for a file name
func language(path string) string {
	langs := map[string]string{
		".go":    "go",
		".py":    "python",
		".js":    "javascript",
		".ts":    "typescript",
		".jsx":   "jsx",
		".tsx":   "tsx",
		".rs":    "rust",
		".c":     "c",
		".h":     "c",
		".cpp":   "cpp",
		".hpp":   "cpp",
		".java":  "java",
		".rb":    "ruby",
		".php":   "php",
		".sh":    "bash",
		".bash":  "bash",
		".zsh":   "zsh",
		".yaml":  "yaml",
		".yml":   "yaml",
		".json":  "json",
		".toml":  "toml",
		".sql":   "sql",
		".lua":   "lua",
		".swift": "swift",
		".kt":    "kotlin",
		".scala": "scala",
		".hs":    "haskell",
		".md":    "markdown",
	}
	return langs[strings.ToLower(filepath.Ext(path))]
}

func isExcludedDir(name string) bool {
	excluded := map[string]bool{
		"node_modules": true,
		"vendor":       true,
		"__pycache__":  true,
		"target":       true,
		"build":        true,
		"dist":         true,
		"bin":          true,
		"obj":          true,
		"venv":         true,
		"env":          true,
	}
	return excluded[name]
}

func isSensitivePath(path string) bool {
	sensitive := []string{
		"/.ssh/",
		"/.gnupg/",
		"/.aws/",
		"/.config/gcloud",
		"/etc/shadow",
		"/.netrc",
		"/.npmrc",
		"/.pypirc",
		"/credentials",
		"/secrets",
		"/.env",
		".pem",
		".key",
		"id_rsa",
		"id_ed25519",
		"id_ecdsa",
	}

	lowerPath := strings.ToLower(path)
	for _, s := range sensitive {
		if strings.Contains(lowerPath, s) {
			return true
		}
	}
	return false
}
