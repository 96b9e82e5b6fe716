/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

const DefaultSQLTable = "users"

var sqlIdentifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStoreOpts contains options for SQLStore.
type SQLStoreOpts struct {
	// Table is a name of the table with users. DefaultSQLTable is used if it's empty.
	// The table must have "id", "subject", "username" and "email" columns.
	Table string

	// PositionalPlaceholders makes the store use "$1" instead of "?" (PostgreSQL).
	PositionalPlaceholders bool
}

// SQLStore is a Store backed by a SQL database.
type SQLStore struct {
	db    *sql.DB
	query string
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	return NewSQLStoreWithOpts(db, SQLStoreOpts{})
}

// NewSQLStoreWithOpts creates a new SQLStore with options.
func NewSQLStoreWithOpts(db *sql.DB, opts SQLStoreOpts) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if opts.Table == "" {
		opts.Table = DefaultSQLTable
	}
	if !sqlIdentifierRegexp.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	placeholder := "?"
	if opts.PositionalPlaceholders {
		placeholder = "$1"
	}
	return &SQLStore{
		db: db,
		query: fmt.Sprintf( // nolint:gosec // table name is validated
			"SELECT id, subject, COALESCE(username, ''), COALESCE(email, '') FROM %s WHERE subject = %s",
			opts.Table, placeholder),
	}, nil
}

// FindBySubject implements Store interface.
func (s *SQLStore) FindBySubject(ctx context.Context, subject string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, s.query, subject).Scan(&u.ID, &u.Subject, &u.Username, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by subject: %w", err)
	}
	return &u, nil
}
