package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file does not
	// exist and creation was not requested.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRunNotFound is returned when no stored run matches the lookup.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilRun is returned when a nil run or a run without a profile is saved.
	ErrNilRun = errors.New("run is nil or has no profile")
)
