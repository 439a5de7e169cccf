// internal/db/store.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"openai-cli/internal/models"
)

var ErrNotFound = errors.New("command not found")

type Store struct {
	db *sql.DB
}

// Command is a named prompt template that fans out to a fixed model list.
// An empty Models list means the configured default model.
type Command struct {
	Name        string
	Description string
	Prompt      string
	Models      []models.Spec
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open opens the catalog in the user data directory.
func Open() (*Store, error) {
	dataDir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return OpenPath(filepath.Join(dataDir, "commands.db"))
}

// OpenPath opens (or creates) the catalog at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func dataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "openai-cli"), nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		name TEXT PRIMARY KEY,
		description TEXT,
		prompt TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS command_models (
		command TEXT NOT NULL REFERENCES commands(name) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (command, position)
	);

	CREATE INDEX IF NOT EXISTS idx_command_models_command ON command_models(command);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AddCommand inserts a command or replaces an existing one with the same name,
// including its model list.
func (s *Store) AddCommand(c Command) error {
	if c.Name == "" {
		return fmt.Errorf("command name is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO commands (name, description, prompt) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			prompt = excluded.prompt,
			updated_at = CURRENT_TIMESTAMP`,
		c.Name, c.Description, c.Prompt,
	)
	if err != nil {
		return err
	}
	if err := replaceModels(tx, c.Name, c.Models); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCommand retrieves a command by name
func (s *Store) GetCommand(name string) (*Command, error) {
	row := s.db.QueryRow(
		`SELECT name, description, prompt, created_at, updated_at
		 FROM commands WHERE name = ?`, name,
	)

	var c Command
	var description sql.NullString
	err := row.Scan(&c.Name, &description, &c.Prompt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	c.Description = description.String

	specs, err := s.commandModels(name)
	if err != nil {
		return nil, err
	}
	c.Models = specs
	return &c, nil
}

// ListCommands returns all commands ordered by name
func (s *Store) ListCommands() ([]Command, error) {
	rows, err := s.db.Query(
		`SELECT name, description, prompt, created_at, updated_at
		 FROM commands ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var c Command
		var description sql.NullString
		if err := rows.Scan(&c.Name, &description, &c.Prompt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Description = description.String
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range commands {
		specs, err := s.commandModels(commands[i].Name)
		if err != nil {
			return nil, err
		}
		commands[i].Models = specs
	}
	return commands, nil
}

// RemoveCommand deletes a command and its model list
func (s *Store) RemoveCommand(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM command_models WHERE command = ?`, name); err != nil {
		return err
	}
	result, err := tx.Exec(`DELETE FROM commands WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tx.Commit()
}

// SetCommandModels replaces the model list of an existing command
func (s *Store) SetCommandModels(name string, specs []models.Spec) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM commands WHERE name = ?`, name).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := replaceModels(tx, name, specs); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE commands SET updated_at = CURRENT_TIMESTAMP WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// Seed inserts cmds when the catalog is empty and reports how many were added.
// A catalog the user already edited is left alone.
func (s *Store) Seed(cmds []Command) (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM commands`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	for i, c := range cmds {
		if err := s.AddCommand(c); err != nil {
			return i, fmt.Errorf("seed %s: %w", c.Name, err)
		}
	}
	return len(cmds), nil
}

func (s *Store) commandModels(name string) ([]models.Spec, error) {
	rows, err := s.db.Query(
		`SELECT provider, model FROM command_models WHERE command = ? ORDER BY position`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []models.Spec
	for rows.Next() {
		var spec models.Spec
		if err := rows.Scan(&spec.Provider, &spec.Model); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

func replaceModels(tx *sql.Tx, name string, specs []models.Spec) error {
	if _, err := tx.Exec(`DELETE FROM command_models WHERE command = ?`, name); err != nil {
		return err
	}
	for i, spec := range specs {
		_, err := tx.Exec(
			`INSERT INTO command_models (command, position, provider, model) VALUES (?, ?, ?, ?)`,
			name, i, spec.Provider, spec.Model,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
