// Package database keeps the history of discovery runs in SQLite.
//
// Each run is stored with its profile, timestamps, summary counts and one row
// per broker result. Runs are indexed by the profile's subject key, a hash of
// the normalized name and location, so that `report` and `compare` can find
// earlier runs for the same person.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database lives in
// the XDG data directory unless the caller opens another directory.
package database
