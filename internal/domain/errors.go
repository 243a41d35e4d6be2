package domain

import "errors"

// Domain-specific errors for task mutation and lookup.
var (
	// Task errors
	ErrTaskNotFound    = errors.New("task not found")
	ErrVersionConflict = errors.New("task was modified by another editor")
	ErrMissingVersion  = errors.New("version token is required for update")

	// Validation errors
	ErrInvalidStatus = errors.New("invalid task status")
)
