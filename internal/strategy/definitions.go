package strategy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrDefinitionNotFound reports a lookup for a name with no stored definition.
var ErrDefinitionNotFound = errors.New("strategy definition not found")

// ValidationError reports a user-supplied definition that cannot be accepted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid strategy definition: " + e.Reason
}

// Definition is a user-defined strategy: a registered kind plus a YAML
// parameter payload, stored under a unique name.
type Definition struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Params    string    `json:"params"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefinitionStore persists user-defined strategies in SQLite. Every write is
// validated against the registry before it is accepted, so anything that can
// be read back is guaranteed to build.
type DefinitionStore struct {
	db       *sql.DB
	registry *Registry
}

// NewDefinitionStore opens (or creates) the SQLite database at dbPath and
// ensures the definitions table exists.
func NewDefinitionStore(dbPath string, registry *Registry) (*DefinitionStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening strategy store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS strategy_definitions (
			name       TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			params     TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating strategy_definitions table: %w", err)
	}
	return &DefinitionStore{db: db, registry: registry}, nil
}

// Close closes the underlying database connection.
func (s *DefinitionStore) Close() error {
	return s.db.Close()
}

// validate checks that def names a registered kind, carries well-formed YAML
// parameters, and that the kind's factory accepts them.
func (s *DefinitionStore) validate(def Definition) error {
	if def.Name == "" {
		return &ValidationError{Reason: "name must not be empty"}
	}
	if _, ok := s.registry.Lookup(def.Kind); !ok {
		return &ValidationError{Reason: fmt.Sprintf("unknown strategy kind %q", def.Kind)}
	}
	if def.Params != "" {
		var probe map[string]any
		if err := yaml.Unmarshal([]byte(def.Params), &probe); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("params are not valid YAML: %v", err)}
		}
	}
	// Trial build so bad parameter values are rejected at save time.
	if _, err := s.registry.Build(def.Kind, []byte(def.Params)); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// Add stores a new definition. The name must not collide with a built-in
// strategy or an existing definition.
func (s *DefinitionStore) Add(ctx context.Context, def Definition) (Definition, error) {
	if err := s.validate(def); err != nil {
		return Definition{}, err
	}
	if _, ok := s.registry.Lookup(def.Name); ok {
		return Definition{}, &ValidationError{Reason: fmt.Sprintf("name %q shadows a built-in strategy", def.Name)}
	}

	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_definitions (name, kind, params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		def.Name, def.Kind, def.Params, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		if _, getErr := s.Get(def.Name); getErr == nil {
			return Definition{}, &ValidationError{Reason: fmt.Sprintf("definition %q already exists", def.Name)}
		}
		return Definition{}, fmt.Errorf("inserting definition %q: %w", def.Name, err)
	}
	return def, nil
}

// Edit replaces the kind and params of an existing definition.
func (s *DefinitionStore) Edit(ctx context.Context, def Definition) (Definition, error) {
	if err := s.validate(def); err != nil {
		return Definition{}, err
	}

	existing, err := s.Get(def.Name)
	if err != nil {
		return Definition{}, err
	}
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE strategy_definitions SET kind = ?, params = ?, updated_at = ?
		WHERE name = ?`,
		def.Kind, def.Params, def.UpdatedAt, def.Name)
	if err != nil {
		return Definition{}, fmt.Errorf("updating definition %q: %w", def.Name, err)
	}
	return def, nil
}

// Delete removes the named definition.
func (s *DefinitionStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategy_definitions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting definition %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrDefinitionNotFound, name)
	}
	return nil
}

// Get retrieves a single definition by name.
func (s *DefinitionStore) Get(name string) (Definition, error) {
	var def Definition
	err := s.db.QueryRow(`
		SELECT name, kind, params, created_at, updated_at
		FROM strategy_definitions WHERE name = ?`, name).
		Scan(&def.Name, &def.Kind, &def.Params, &def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, fmt.Errorf("%w: %q", ErrDefinitionNotFound, name)
	}
	if err != nil {
		return Definition{}, fmt.Errorf("reading definition %q: %w", name, err)
	}
	return def, nil
}

// List returns all stored definitions ordered by name.
func (s *DefinitionStore) List() ([]Definition, error) {
	rows, err := s.db.Query(`
		SELECT name, kind, params, created_at, updated_at
		FROM strategy_definitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var def Definition
		if err := rows.Scan(&def.Name, &def.Kind, &def.Params, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}
