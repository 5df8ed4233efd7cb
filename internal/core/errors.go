package core

import "errors"

var (
	// ErrNotFound means the requested item or link does not exist.
	// Recoverable: the caller decides the default.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means a malformed key, an out-of-range weight or
	// similar. Rejected before any write happens.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable means the persistence layer is unreachable past
	// the retry budget. Propagates as a health-check failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrExtractionFailure means the extraction collaborator call failed.
	// The fact is skipped, the batch continues.
	ErrExtractionFailure = errors.New("extraction failure")
)
