package evaluator

import "errors"

var (
	// ErrInvalidInput marks a submission rejected before any scoring happened,
	// e.g. a CGPA outside the 10-point scale. Terminal for the submission.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFileResolution marks a handle that could not be resolved to bytes.
	// Terminal for the submission: fallback substitutes for a missing server,
	// never for a missing file.
	ErrFileResolution = errors.New("file resolution failed")
)
