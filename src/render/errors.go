package render

import "errors"

// Failure conditions of the resource and frame pipeline. Callers test with
// errors.Is; call sites wrap with fmt.Errorf and %w to add context.
var (
	ErrDuplicateName          = errors.New("buffer name already exists")
	ErrNoSuitableMemoryType   = errors.New("no suitable memory type")
	ErrNotHostVisible         = errors.New("buffer memory is not host visible")
	ErrMissingTransferContext = errors.New("transfer requires an execution context")
	ErrUnsupportedTransition  = errors.New("unsupported image state transition")
	ErrSubmissionFailure      = errors.New("queue submission failed")
	ErrAcquireTimeout         = errors.New("timed out waiting for device resource")
	ErrStaleSurface           = errors.New("surface is stale and must be recreated")
	ErrOutOfRange             = errors.New("access exceeds buffer bounds")
)
