// Package routedb keeps a small sqlite index of the routes produced under
// a data directory.
package routedb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the route index database.
type DB struct {
	*sql.DB
}

// Route is one produced route.
type Route struct {
	Name     string
	Policy   string
	Segments int
	Dropped  int
	Created  time.Time
}

// Open opens (creating if necessary) the route index at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS routes (
			route_name TEXT PRIMARY KEY,
			policy TEXT NOT NULL,
			segments INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create routes table: %w", err)
	}

	return &DB{db}, nil
}

// RecordRoute records a fully flushed route. Re-encoding a route replaces
// its row; a route that failed mid-flush must never be recorded.
func (db *DB) RecordRoute(name, policy string, segments, dropped int) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO routes (route_name, policy, segments, dropped) VALUES (?, ?, ?, ?)`,
		name, policy, segments, dropped,
	)
	if err != nil {
		return fmt.Errorf("failed to record route %s: %w", name, err)
	}
	return nil
}

// ListRoutes returns all recorded routes, newest first.
func (db *DB) ListRoutes() ([]Route, error) {
	rows, err := db.Query(
		`SELECT route_name, policy, segments, dropped, created FROM routes ORDER BY created DESC, route_name DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var r Route
		if err := rows.Scan(&r.Name, &r.Policy, &r.Segments, &r.Dropped, &r.Created); err != nil {
			return nil, fmt.Errorf("failed to scan route row: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
