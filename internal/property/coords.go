package property

import (
	"fmt"

	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// CoordRepository persists the postcode coordinate table.
type CoordRepository struct {
	db *db.DB
}

// NewCoordRepository creates a coordinate repository.
func NewCoordRepository(d *db.DB) *CoordRepository {
	return &CoordRepository{db: d}
}

// Upsert stores the coordinates of a postcode, replacing any existing row.
func (r *CoordRepository) Upsert(postcode string, c geotime.Coord) error {
	_, err := r.db.Exec(
		r.db.Rebind(`INSERT INTO postcodes (postcode, lat, lon) VALUES (?, ?, ?)
			ON CONFLICT (postcode) DO UPDATE SET lat = excluded.lat, lon = excluded.lon`),
		geotime.NormalizePostcode(postcode), c.Lat, c.Lon,
	)
	if err != nil {
		return fmt.Errorf("upserting postcode %s: %w", postcode, err)
	}
	return nil
}

// UpsertAll stores every entry of table.
func (r *CoordRepository) UpsertAll(table geotime.CoordTable) error {
	for p, c := range table {
		if err := r.Upsert(p, c); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the stored coordinate table.
func (r *CoordRepository) Load() (table geotime.CoordTable, err error) {
	rows, err := r.db.Query("SELECT postcode, lat, lon FROM postcodes")
	if err != nil {
		return nil, fmt.Errorf("loading postcodes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	table = make(geotime.CoordTable)
	for rows.Next() {
		var p string
		var c geotime.Coord
		if err := rows.Scan(&p, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("scanning postcode: %w", err)
		}
		table[geotime.NormalizePostcode(p)] = c
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating postcodes: %w", err)
	}

	return table, nil
}

// LoadOrDefault returns the stored table, or the built-in London table
// when none has been stored.
func (r *CoordRepository) LoadOrDefault() (geotime.CoordTable, error) {
	table, err := r.Load()
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return geotime.DefaultCoords(), nil
	}
	return table, nil
}
