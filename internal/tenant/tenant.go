// Package tenant provides the tenant model and data access.
package tenant

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/viewing-scheduler/internal/db"
)

// Tenant requests viewings. TravelTolerance overrides the agency default
// tolerance for the tenant-side conflict rule when set.
type Tenant struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	TravelTolerance *int      `json:"travel_tolerance,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Repository provides data access for tenants.
type Repository struct {
	db *db.DB
}

// NewRepository creates a tenant repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

const selectColumns = "id, name, email, phone, travel_tolerance, created_at"

func scanTenant(row interface{ Scan(...interface{}) error }) (*Tenant, error) {
	var t Tenant
	var tolerance sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &tolerance, &t.CreatedAt); err != nil {
		return nil, err
	}
	if tolerance.Valid {
		v := int(tolerance.Int64)
		t.TravelTolerance = &v
	}
	return &t, nil
}

// Create adds a tenant.
func (r *Repository) Create(t *Tenant) (*Tenant, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if t.TravelTolerance != nil && *t.TravelTolerance < 0 {
		return nil, fmt.Errorf("travel tolerance must not be negative, got %d", *t.TravelTolerance)
	}

	var id int64
	err := r.db.QueryRow(
		r.db.Rebind("INSERT INTO tenants (name, email, phone, travel_tolerance) VALUES (?, ?, ?, ?) RETURNING id"),
		name, strings.TrimSpace(t.Email), strings.TrimSpace(t.Phone), t.TravelTolerance,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting tenant: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns a tenant by ID.
func (r *Repository) GetByID(id int64) (*Tenant, error) {
	query := fmt.Sprintf("SELECT %s FROM tenants WHERE id = ?", selectColumns)
	t, err := scanTenant(r.db.QueryRow(r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant %d: %w", id, err)
	}
	return t, nil
}

// List returns all tenants ordered by ID.
func (r *Repository) List() ([]*Tenant, error) {
	rows, err := r.db.Query(fmt.Sprintf("SELECT %s FROM tenants ORDER BY id", selectColumns))
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}

	return tenants, nil
}
