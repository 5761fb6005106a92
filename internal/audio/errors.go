package audio

import (
	"errors"
	"fmt"
)

// Negotiation and frame processing errors
var (
	ErrConfigurationIncomplete  = errors.New("configuration incomplete")
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
	ErrDecodeEngineInitFailed   = errors.New("decode engine init failed")
	ErrFrameDecodeFailed        = errors.New("frame decode failed")
	ErrOutputNegotiationFailed  = errors.New("output negotiation failed")
	ErrAllocationFailed         = errors.New("allocation failed")
)

// Session lifecycle errors
var (
	ErrNotStarted    = errors.New("session not started")
	ErrNotNegotiated = errors.New("session has no negotiated format")
	ErrSessionClosed = errors.New("session is closed")
)

// StatusError carries the numeric status returned by a decode engine.
// A non-positive status means the superframe produced no audio.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("engine status %d", e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
