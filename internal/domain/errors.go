package domain

import "errors"

var (
	// ErrEmptyInput means there was no content to process. Terminal for
	// that call and reported to the caller.
	ErrEmptyInput = errors.New("no content to process")

	// ErrUnavailable means an external capability is down or erroring.
	// Always recovered locally via the component's fallback.
	ErrUnavailable = errors.New("capability unavailable")

	// ErrMalformedOutput means a model response could not be parsed as the
	// expected structured data. Recovered via fallback, logged only.
	ErrMalformedOutput = errors.New("malformed model output")
)
