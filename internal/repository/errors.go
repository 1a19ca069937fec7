package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a conditional write lost against a concurrent change.
	ErrConflict = errors.New("repository: conflict")
)
