package entities

import "errors"

// Error categories surfaced to callers. Services wrap them with detail, e.g.
// fmt.Errorf("%w: deviceId is required", ErrInvalidArgument), and the API
// layer maps them to status codes with errors.Is. Any error that matches none
// of these is an infrastructure failure.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrFailedPrecondition = errors.New("failed precondition")
)
