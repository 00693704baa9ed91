package codecproto

import (
	"errors"
	"fmt"
)

var (
	ErrShortWrite = errors.New("short write")
	ErrShortRead  = errors.New("short read")

	ErrSettingsSizeMismatch = errors.New("settings struct size mismatch")
	ErrVersionMismatch      = errors.New("protocol version mismatch")

	ErrUnexpectedResponse = errors.New("unexpected response kind")
	ErrPayloadTooLarge    = errors.New("announced payload is too large")
)

// IOError describes a read or write that did not transfer exactly the
// expected number of bytes.
type IOError struct {
	Op      string
	Subject string
	Want    int
	Got     int
	Err     error
}

func (e *IOError) Error() string {
	msg := fmt.Sprintf("%s of %s: transferred %d of %d bytes", e.Op, e.Subject, e.Got, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IOError) Unwrap() []error {
	sentinel := ErrShortRead
	if e.Op == "write" {
		sentinel = ErrShortWrite
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}
