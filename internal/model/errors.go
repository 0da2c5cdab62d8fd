package model

import "errors"

var (
	// ErrEmptyName is returned when a ClientProfile is created without a name.
	ErrEmptyName = errors.New("profile name must not be empty")

	// ErrInvalidResultField is returned by BrokerResultFromMap when a field
	// cannot be converted back to its typed value.
	ErrInvalidResultField = errors.New("invalid broker result field")
)
