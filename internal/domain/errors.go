package domain

import "errors"

// Error kinds. Names are semantic, not positional: callers check with
// errors.Is, never by comparing strings.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoSpace         = errors.New("destination buffer too small")
	ErrNoUsefulBuffer  = errors.New("buffer too small for even one record")
	ErrMustSwap        = errors.New("serializer needs a new output buffer")
	ErrQueueFull       = errors.New("ring or dispatch queue full")
	ErrWouldBlock      = errors.New("async enqueue refused")
	ErrNotFound        = errors.New("no matching file in pool")
	ErrNotImplemented  = errors.New("driver does not expose this capability")
	ErrTransportFail   = errors.New("transport failed after retries")
	ErrFSFail          = errors.New("file-system operation failed")

	// ErrPublishInProgress is returned to a ForcePublish caller when a
	// publish pass is already running.
	ErrPublishInProgress = errors.New("publish pass already in progress")
)
