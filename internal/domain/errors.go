package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by outputs queried before their schema exists.
	ErrNotInitialized = errors.New("output not initialized")
	// ErrRecordShape marks a record that does not match its schema. It is a
	// producer bug, never a runtime condition.
	ErrRecordShape = errors.New("record does not match schema")
	// ErrChannelStopped is returned when publishing on a stopped output.
	ErrChannelStopped = errors.New("output is stopped")
	// ErrSourceUnavailable is a transient failure to reach a polled source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedReading is a transient failure to parse a polled reading.
	ErrMalformedReading = errors.New("malformed reading")
)

// InitError reports that an output could not be configured as requested. The
// output stays stopped.
type InitError struct {
	Output string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init output %q: %v", e.Output, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
