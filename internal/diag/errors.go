package diag

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBuffer indicates Compile was called with an empty buffer
	ErrEmptyBuffer = errors.New("buffer cannot be empty")

	// ErrTimeout indicates the toolchain invocation exceeded its timeout
	ErrTimeout = errors.New("toolchain invocation timed out")
)

// ParseError indicates the checker produced output the parser could not
// make sense of. This is a defect-class failure: on conforming toolchain
// output it must never occur, and the session aborts rather than guess.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed diagnostic line %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed diagnostic line %q", e.Line)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
