package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")

	// ErrStaleWrite means the job version changed between load and save. The
	// transition is rejected; the caller must reload and retry, never
	// silently overwrite.
	ErrStaleWrite = errors.New("stale write: job was modified concurrently")
)
