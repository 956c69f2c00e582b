package property

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// Repository provides CRUD operations for properties.
type Repository struct {
	db *db.DB
}

// NewRepository creates a property repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

const selectColumns = `id, name, postcode, agent_id, created_at`

// Insert adds a new property and returns it with its generated ID.
// The postcode is stored normalised.
func (r *Repository) Insert(p *Property) (*Property, error) {
	var id int64
	err := r.db.QueryRow(
		r.db.Rebind("INSERT INTO properties (name, postcode, agent_id) VALUES (?, ?, ?) RETURNING id"),
		p.Name, geotime.NormalizePostcode(p.Postcode), p.AgentID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting property: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns a property by its ID.
func (r *Repository) GetByID(id int64) (*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE id = ?", selectColumns)
	row := r.db.QueryRow(r.db.Rebind(query), id)

	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("property %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying property %d: %w", id, err)
	}

	return p, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	AgentID int64 // 0 = all
}

// List returns all properties ordered by ID, optionally filtered.
func (r *Repository) List(opts ListOptions) ([]*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM properties", selectColumns)
	var args []interface{}
	var conditions []string

	if opts.AgentID != 0 {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, opts.AgentID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id"

	rows, err := r.db.Query(r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var properties []*Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		properties = append(properties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating properties: %w", err)
	}

	return properties, nil
}

// Delete removes a property by ID. Properties with viewings cannot be
// deleted.
func (r *Repository) Delete(id int64) error {
	result, err := r.db.Exec(r.db.Rebind("DELETE FROM properties WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting property: %w", err)
	}
	return db.Exists(result, "property", id)
}

// Postcode resolves a property's postcode, satisfying feasibility.Sites.
func (r *Repository) Postcode(id int64) (string, bool, error) {
	var postcode string
	err := r.db.QueryRow(r.db.Rebind("SELECT postcode FROM properties WHERE id = ?"), id).Scan(&postcode)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up postcode: %w", err)
	}
	return postcode, true, nil
}
