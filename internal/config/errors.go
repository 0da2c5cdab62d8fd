package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	// ErrNoName is returned when neither --name nor --list is given.
	ErrNoName = errors.New("no subject: provide --name or --list")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidAttempts is returned when the attempt count is not positive.
	ErrInvalidAttempts = errors.New("invalid attempts: must be at least 1")

	// ErrInvalidLimit is returned when the URL limit is not positive.
	ErrInvalidLimit = errors.New("invalid limit: must be at least 1")

	// ErrInvalidDelay is returned for a negative delay or a maximum below
	// the minimum.
	ErrInvalidDelay = errors.New("invalid delay: need 0 <= min <= max")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --csv is set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown, --csv")

	// ErrConflictingProxy is returned when both --proxy and --tor are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrInvalidMaxBodySize is returned when the body limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Batch list errors returned by LoadProfiles.
var (
	// ErrNoProfiles is returned when the list holds no entries.
	ErrNoProfiles = errors.New("profile list is empty")

	// ErrInvalidProfileList is returned when the list cannot be decoded.
	ErrInvalidProfileList = errors.New("invalid profile list")
)
