package registry

import "errors"

var (
	// ErrNoBrokers is returned when a site list contains no usable entry.
	ErrNoBrokers = errors.New("site list contains no brokers")

	// ErrInvalidSiteList is returned when the document shape is not a
	// sequence or a mapping with a "brokers" key.
	ErrInvalidSiteList = errors.New("invalid site list")

	// ErrSitesNotFound is returned when no site list file exists.
	ErrSitesNotFound = errors.New("site list file not found")
)
