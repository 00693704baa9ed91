package coprocess

import (
	"github.com/hashicorp/go-multierror"
)

// cleanupStack remembers the resources acquired so far and releases them
// in reverse order of acquisition.
type cleanupStack struct {
	funcs []func() error
}

func (s *cleanupStack) Push(fn func() error) {
	s.funcs = append(s.funcs, fn)
}

func (s *cleanupStack) Len() int {
	return len(s.funcs)
}

// Unwind runs every pushed function, last first, even if some of them fail.
func (s *cleanupStack) Unwind() error {
	var result *multierror.Error
	for i := len(s.funcs) - 1; i >= 0; i-- {
		if err := s.funcs[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.funcs = nil
	return result.ErrorOrNil()
}

// Release forgets the pushed functions without running them: ownership of
// the resources has been handed over.
func (s *cleanupStack) Release() {
	s.funcs = nil
}
