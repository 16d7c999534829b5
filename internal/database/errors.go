package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateEmail is returned when an account with the same email already exists
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidPage is returned for page numbers below 1
	ErrInvalidPage = errors.New("invalid page number")
	// ErrNoID is returned when an insert did not yield a row id
	ErrNoID = errors.New("insert returned no id")
	// ErrEmptyEmail is returned when an account without email is inserted
	ErrEmptyEmail = errors.New("account email is empty")
	// ErrIncompleteCriteria is returned for a password digest lookup without email
	ErrIncompleteCriteria = errors.New("password digest criteria needs an email")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
