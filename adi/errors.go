package adi

import "github.com/pkg/errors"

// The two failure kinds of the ADI layer. Everything fallible wraps one of
// these; callers discriminate with errors.Is.
var (
	// ErrInvalidPort means the port index fell outside 1-8 after alias
	// normalization.
	ErrInvalidPort = errors.New("invalid ADI port")
	// ErrWrongConfig means the operation was requested on a port not
	// currently holding the required role, or through a stale device handle.
	ErrWrongConfig = errors.New("port not configured for operation")
)
