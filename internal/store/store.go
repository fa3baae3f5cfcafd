// Package store is the relational sink's data access layer. It receives an
// already-opened *sql.DB (see the dbopen package) and normalizes cycle
// output into product, price-history, price-change, stats, and page tables.
package store

import "database/sql"

// Store wraps the monitoring database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
