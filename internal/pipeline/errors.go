package pipeline

import "errors"

var (
	// ErrNilProfile is returned when RunDiscovery is called without a profile.
	ErrNilProfile = errors.New("profile is required")

	// ErrNoBrokerSource is returned when the orchestrator has no broker source.
	ErrNoBrokerSource = errors.New("no broker source configured")

	// ErrLoadBrokers wraps a failure of the broker source.
	ErrLoadBrokers = errors.New("failed to load brokers")
)
