package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRuleUnavailable = errors.New("rule unavailable")
	ErrUnknownVenue    = errors.New("unknown venue")
	ErrLockHeld        = errors.New("lock already held")
)
