package store

import "errors"

// Sentinel errors for precondition failures. Every mutating operation either
// fully commits or fails with one of these before any state is visible; the
// API layer maps them to HTTP status codes.
var (
	// ErrPermissionDenied means a role or ownership check failed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument means an input was zero, empty or out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound means a referenced id does not exist or has no role.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation is not valid for the entity's
	// current status, e.g. editing a non-pending listing or trading against
	// a non-active commodity.
	ErrInvalidState = errors.New("invalid state")
)
