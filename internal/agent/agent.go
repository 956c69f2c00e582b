// Package agent provides the agent model and data access.
package agent

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/viewing-scheduler/internal/db"
)

// Agent runs viewings. Its calendar is the set of confirmed viewings
// carrying its ID.
type Agent struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository provides data access for agents.
type Repository struct {
	db *db.DB
}

// NewRepository creates an agent repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

// Create adds an agent.
func (r *Repository) Create(name, email string) (*Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	var id int64
	err := r.db.QueryRow(
		r.db.Rebind("INSERT INTO agents (name, email) VALUES (?, ?) RETURNING id"),
		name, strings.TrimSpace(email),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting agent: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns an agent by ID.
func (r *Repository) GetByID(id int64) (*Agent, error) {
	var a Agent
	err := r.db.QueryRow(
		r.db.Rebind("SELECT id, name, email, created_at FROM agents WHERE id = ?"), id,
	).Scan(&a.ID, &a.Name, &a.Email, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent %d: %w", id, err)
	}
	return &a, nil
}

// List returns all agents ordered by ID.
func (r *Repository) List() ([]*Agent, error) {
	rows, err := r.db.Query("SELECT id, name, email, created_at FROM agents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var agents []*Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agents = append(agents, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agents: %w", err)
	}

	return agents, nil
}
