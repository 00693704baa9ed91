package safeencoder

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSubprocessUnavailable means the encoder cannot be run at all: the
	// executable or its runtime is missing, or the co-process reported it
	// cannot provide the codec.
	ErrSubprocessUnavailable = errors.New("the encoder co-process is not available")

	ErrInvalidBitrate    = errors.New("the bitrate must be non-zero")
	ErrNotReady          = errors.New("the encoder session is not ready")
	ErrExtraDataNotReady = errors.New("the extra data is not available yet")
	ErrExchangeTimeout   = errors.New("the co-process did not answer in time")
)

// SetupError is a failure to create the pipes or to start the co-process.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("unable to start the encoder co-process: %v", e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// HandshakeError is a failure to exchange the settings record. The
// co-process is already reaped when it is returned.
type HandshakeError struct {
	PID       int
	ExitState *os.ProcessState
	Err       error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("unable to negotiate the settings with the encoder co-process: %v", e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ProtocolError is a failed exchange on an established session. The
// session is unusable afterwards.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unable to %s: protocol failure: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
