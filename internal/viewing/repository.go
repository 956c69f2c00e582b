package viewing

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// Repository provides data access for viewings.
type Repository struct {
	db *db.DB
}

// NewRepository creates a viewing repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

const selectColumns = `id, tenant_id, agent_id, property_id, requested_time, status,
	confirmed_time, suggested_time, travel_time, feasibility_status, duration_minutes,
	created_at, updated_at`

func scanViewing(row interface{ Scan(...interface{}) error }) (*Viewing, error) {
	var v Viewing
	var confirmed, suggested sql.NullString
	var travel sql.NullInt64
	err := row.Scan(&v.ID, &v.TenantID, &v.AgentID, &v.PropertyID, &v.RequestedTime, &v.Status,
		&confirmed, &suggested, &travel, &v.FeasibilityStatus, &v.DurationMinutes,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.ConfirmedTime = confirmed.String
	v.SuggestedTime = suggested.String
	if travel.Valid {
		t := int(travel.Int64)
		v.TravelTime = &t
	}
	return &v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Insert stores a new viewing and returns it with its generated ID.
func (r *Repository) Insert(v *Viewing) (*Viewing, error) {
	if !v.Status.IsValid() {
		return nil, fmt.Errorf("invalid viewing status: %q", v.Status)
	}

	var id int64
	err := r.db.QueryRow(
		r.db.Rebind(`INSERT INTO viewings
			(tenant_id, agent_id, property_id, requested_time, status, confirmed_time,
			 suggested_time, travel_time, feasibility_status, duration_minutes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		v.TenantID, v.AgentID, v.PropertyID, v.RequestedTime, v.Status,
		nullString(v.ConfirmedTime), nullString(v.SuggestedTime), v.TravelTime,
		v.FeasibilityStatus, v.DurationMinutes,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting viewing: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns a viewing by ID.
func (r *Repository) GetByID(id int64) (*Viewing, error) {
	query := fmt.Sprintf("SELECT %s FROM viewings WHERE id = ?", selectColumns)
	v, err := scanViewing(r.db.QueryRow(r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("viewing %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying viewing %d: %w", id, err)
	}
	return v, nil
}

// ListOptions controls filtering for List and Calendar.
type ListOptions struct {
	Status   Status // "" = all
	AgentID  int64  // 0 = all
	TenantID int64  // 0 = all
}

func (o ListOptions) where(alias string) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if o.Status != "" {
		conditions = append(conditions, alias+"status = ?")
		args = append(args, o.Status)
	}
	if o.AgentID != 0 {
		conditions = append(conditions, alias+"agent_id = ?")
		args = append(args, o.AgentID)
	}
	if o.TenantID != 0 {
		conditions = append(conditions, alias+"tenant_id = ?")
		args = append(args, o.TenantID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns viewings ordered by the time they occupy, then ID.
func (r *Repository) List(opts ListOptions) ([]*Viewing, error) {
	where, args := opts.where("")
	query := fmt.Sprintf("SELECT %s FROM viewings%s ORDER BY COALESCE(confirmed_time, requested_time), id",
		selectColumns, where)

	rows, err := r.db.Query(r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing viewings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var viewings []*Viewing
	for rows.Next() {
		v, err := scanViewing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning viewing: %w", err)
		}
		viewings = append(viewings, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating viewings: %w", err)
	}

	return viewings, nil
}

// Transition writes v's status and times, provided the stored status is
// still from. A lost race reports ErrInvalidTransition.
func (r *Repository) Transition(v *Viewing, from Status) error {
	if !from.CanTransitionTo(v.Status) {
		return invalidTransition(&Viewing{ID: v.ID, Status: from}, v.Status)
	}

	result, err := r.db.Exec(
		r.db.Rebind(`UPDATE viewings
			SET status = ?, confirmed_time = ?, suggested_time = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?`),
		v.Status, nullString(v.ConfirmedTime), nullString(v.SuggestedTime), v.ID, from,
	)
	if err != nil {
		return fmt.Errorf("updating viewing %d: %w", v.ID, err)
	}

	if err := db.Exists(result, "viewing", v.ID); err != nil {
		current, getErr := r.GetByID(v.ID)
		if getErr != nil {
			return getErr
		}
		return invalidTransition(current, v.Status)
	}
	return nil
}

// Calendar returns confirmed viewings matching opts as feasibility
// bookings. opts.Status is ignored.
func (r *Repository) Calendar(opts ListOptions) (feasibility.Calendar, error) {
	opts.Status = StatusConfirmed
	where, args := opts.where("v.")
	query := `SELECT v.id, v.agent_id, v.tenant_id, v.property_id, p.postcode, v.confirmed_time, v.duration_minutes
		FROM viewings v JOIN properties p ON p.id = v.property_id` + where

	rows, err := r.db.Query(r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("loading calendar: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var cal feasibility.Calendar
	for rows.Next() {
		var b feasibility.Booking
		var start string
		if err := rows.Scan(&b.ViewingID, &b.AgentID, &b.TenantID, &b.PropertyID, &b.Postcode, &start, &b.Duration); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		if b.Start, err = geotime.ParseTime(start); err != nil {
			return nil, fmt.Errorf("viewing %d confirmed time: %w", b.ViewingID, err)
		}
		cal = append(cal, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calendar: %w", err)
	}

	return cal, nil
}
