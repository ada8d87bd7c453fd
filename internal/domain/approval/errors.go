package approval

import "errors"

var (
	// ErrValidation is returned when a submission payload is missing required fields
	ErrValidation = errors.New("invalid submission payload")

	// ErrNotFound is returned when an action references an unknown subject id
	ErrNotFound = errors.New("subject not found")

	// ErrPolicyViolation is returned when the actor lacks authority for the
	// requested transition or the subject is already closed
	ErrPolicyViolation = errors.New("policy violation")

	// ErrConflict is returned when a concurrent mutation wins the compare-and-swap race
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrStorageUnavailable is returned when the record store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")
)
