package extract

import "errors"

var (
	// ErrEmptyInput means the model produced no usable text at all.
	ErrEmptyInput = errors.New("no usable content")

	// ErrMalformedEmbeddedData means an embedded data block could not be
	// decoded even after repair. The pipeline falls through to the next
	// strategy when it sees this.
	ErrMalformedEmbeddedData = errors.New("malformed embedded data")

	// ErrValidationGap means a field stayed unresolved after every strategy.
	// Callers substitute the deterministic fallback.
	ErrValidationGap = errors.New("field unresolved")
)
