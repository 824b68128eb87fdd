// Package apperr defines the sentinel error kinds shared across the
// application. Transport layers map these to status codes; everything
// else wraps them with context via fmt.Errorf("...: %w", ...).
package apperr

import "errors"

var (
	// ErrNotFound signals that a requested path is unknown to the index.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals that a full rebuild is already running.
	ErrConflict = errors.New("rebuild in progress")

	// ErrStoreUnavailable signals that the backing vector store is
	// unreachable. Distinguished from ErrNotFound so callers can retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidInput signals a malformed request (e.g. top-k out of bounds).
	ErrInvalidInput = errors.New("invalid input")

	// ErrParseFailure signals a malformed document. Never fatal to a
	// rebuild; the document is skipped and reported in the summary.
	ErrParseFailure = errors.New("parse failure")
)
