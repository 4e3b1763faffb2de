package domain

import "errors"

// Error taxonomy shared across the pipeline. Per-item failures inside a
// batch are recorded on the job and never wrapped in these; stage-level
// failures are.
var (
	// ErrResourceExhausted is returned when the browser pool is at capacity
	// and no lease frees up within the acquire timeout.
	ErrResourceExhausted = errors.New("browser pool exhausted")

	// ErrNavigation is returned when a page cannot be loaded or navigated.
	ErrNavigation = errors.New("navigation failed")

	// ErrExtraction is returned when no selector resolves or recognition
	// yields nothing usable.
	ErrExtraction = errors.New("extraction failed")

	// ErrValidation is returned for malformed configuration.
	ErrValidation = errors.New("invalid configuration")

	// ErrPersistenceConflict is returned on duplicate-key conflicts that
	// cannot be resolved by an upsert.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrJobNotFound is returned when a job ID is unknown.
	ErrJobNotFound = errors.New("job not found")
)
