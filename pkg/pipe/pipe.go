// Package pipe provides the unidirectional byte channel the co-process
// protocol runs on: an OS pipe whose both ends are close-on-exec, so that
// only the ends explicitly handed to a child survive process creation.
package pipe

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"
)

type Pipe struct {
	Reader *os.File
	Writer *os.File
}

// New creates a pipe with O_CLOEXEC set on both ends.
func New(name string) (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("unable to create the %s pipe: %w", name, err)
	}
	return &Pipe{
		Reader: os.NewFile(uintptr(fds[0]), name+"|r"),
		Writer: os.NewFile(uintptr(fds[1]), name+"|w"),
	}, nil
}

// CloseReader closes the read end; calling it again is a no-op.
func (p *Pipe) CloseReader() error {
	if p.Reader == nil {
		return nil
	}
	err := p.Reader.Close()
	p.Reader = nil
	if err != nil {
		return fmt.Errorf("unable to close the read end: %w", err)
	}
	return nil
}

// CloseWriter closes the write end; calling it again is a no-op.
func (p *Pipe) CloseWriter() error {
	if p.Writer == nil {
		return nil
	}
	err := p.Writer.Close()
	p.Writer = nil
	if err != nil {
		return fmt.Errorf("unable to close the write end: %w", err)
	}
	return nil
}

// Close closes whatever ends are still open.
func (p *Pipe) Close() error {
	var result *multierror.Error
	if err := p.CloseReader(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.CloseWriter(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
