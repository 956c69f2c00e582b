package db

import (
	"fmt"
	"strings"
)

// migrations is an ordered list of SQL statements to run. Column types
// are written with {{...}} tokens that expand per dialect.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id         {{pk}},
		name       TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tenants (
		id               {{pk}},
		name             TEXT    NOT NULL,
		email            TEXT    NOT NULL DEFAULT '',
		phone            TEXT    NOT NULL DEFAULT '',
		travel_tolerance INTEGER CHECK (travel_tolerance IS NULL OR travel_tolerance >= 0),
		created_at       {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS properties (
		id         {{pk}},
		name       TEXT    NOT NULL,
		postcode   TEXT    NOT NULL,
		agent_id   INTEGER NOT NULL REFERENCES agents(id),
		created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS postcodes (
		postcode TEXT   PRIMARY KEY,
		lat      {{real}} NOT NULL,
		lon      {{real}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS viewings (
		id                 {{pk}},
		tenant_id          INTEGER NOT NULL REFERENCES tenants(id),
		agent_id           INTEGER NOT NULL REFERENCES agents(id),
		property_id        INTEGER NOT NULL REFERENCES properties(id),
		requested_time     TEXT    NOT NULL,
		status             TEXT    NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'suggested', 'confirmed', 'declined')),
		confirmed_time     TEXT,
		suggested_time     TEXT,
		travel_time        INTEGER,
		feasibility_status TEXT    NOT NULL DEFAULT 'ok',
		duration_minutes   INTEGER NOT NULL,
		created_at         {{timestamp}} DEFAULT CURRENT_TIMESTAMP,
		updated_at         {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_viewings_agent_status ON viewings(agent_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_viewings_tenant_status ON viewings(tenant_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_properties_agent ON properties(agent_id)`,
}

var columnTypes = map[Dialect]*strings.Replacer{
	SQLite: strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{timestamp}}", "DATETIME",
		"{{real}}", "REAL",
	),
	Postgres: strings.NewReplacer(
		"{{pk}}", "BIGSERIAL PRIMARY KEY",
		"{{timestamp}}", "TIMESTAMPTZ",
		"{{real}}", "DOUBLE PRECISION",
	),
}

// migrate runs all migrations in order.
func (d *DB) migrate() error {
	r, ok := columnTypes[d.Dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", d.Dialect)
	}

	for i, m := range migrations {
		if _, err := d.Exec(r.Replace(m)); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}
