package matcher

import "errors"

var (
	// ErrNilProfile is returned when a Query has no profile.
	ErrNilProfile = errors.New("query has no profile")

	// ErrMatcherPanic wraps a panic recovered by Guard.
	ErrMatcherPanic = errors.New("matcher panicked")
)
