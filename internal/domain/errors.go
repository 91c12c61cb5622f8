package domain

import "errors"

var (
	// ErrNoApplicableRule is returned when a margin is requested for a customer
	// that has no margin configuration.
	ErrNoApplicableRule = errors.New("no applicable margin rule: please configure a margin rule first")
	// ErrInvalidConfiguration marks configurations that break a save-time invariant.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrCurrencyMismatch is returned before any arithmetic on amounts in different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)
