// Package clock provides the time source used by the stall watchdog, so
// tests can replace it with a mock.
package clock

import (
	"github.com/benbjohnson/clock"
)

type Clock = clock.Clock
type Timer = clock.Timer
type Mock = clock.Mock

var globalClock Clock = clock.New()

func Get() Clock {
	return globalClock
}

func Set(clk Clock) {
	globalClock = clk
}

func New() Clock {
	return clock.New()
}

func NewMock() *Mock {
	return clock.NewMock()
}
