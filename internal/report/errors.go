package report

import "errors"

var (
	// ErrNilRun is returned when a writer receives no run.
	ErrNilRun = errors.New("no discovery run to report")

	// ErrUnknownFormat is returned by ParseFormat for unsupported names.
	ErrUnknownFormat = errors.New("unknown report format")
)
