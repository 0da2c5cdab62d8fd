package fetch

import "errors"

var (
	// ErrFetchFailed is returned when every attempt of a request failed and
	// the caller did not allow failure.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnexpectedStatus is the retry cause recorded for non-terminal
	// HTTP status codes.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrInvalidURL is returned when the request URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid request URL")
)
