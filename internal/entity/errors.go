package entity

import "errors"

var (
	// ErrUnsupportedNetwork is returned when an adapter or client is asked
	// about a network it does not support. Never swallowed into an empty
	// result.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrNoProviders is returned when no position provider covers the
	// requested network.
	ErrNoProviders = errors.New("no position providers for network")

	// ErrRegistryUnavailable is returned when neither cache layer nor the
	// backing store could produce a registry snapshot.
	ErrRegistryUnavailable = errors.New("verification registry unavailable")
)
