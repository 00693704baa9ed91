package observability

import (
	"sync"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	logger "github.com/facebookincubator/go-belt/tool/logger/types"
)

// LogLevelFilter is the process-wide pre-hook installed into the CLI
// logger; the --log-level flag adjusts it at runtime.
var LogLevelFilter = LogLevelFilterT{Level: logger.LevelInfo}

// LogLevelFilterT skips every entry more verbose than Level.
type LogLevelFilterT struct {
	Locker sync.Mutex
	Level  logger.Level
}

var _ logger.PreHook = (*LogLevelFilterT)(nil)

func (h *LogLevelFilterT) GetLevel() logger.Level {
	h.Locker.Lock()
	defer h.Locker.Unlock()
	return h.Level
}

func (h *LogLevelFilterT) SetLevel(
	level logger.Level,
) {
	h.Locker.Lock()
	defer h.Locker.Unlock()
	h.Level = level
}

func (h *LogLevelFilterT) filter(level logger.Level) logger.PreHookResult {
	if level > h.GetLevel() {
		return logger.PreHookResult{Skip: true}
	}
	return logger.PreHookResult{}
}

func (h *LogLevelFilterT) ProcessInput(
	traceIDs belt.TraceIDs,
	level logger.Level,
	args ...any,
) logger.PreHookResult {
	return h.filter(level)
}

func (h *LogLevelFilterT) ProcessInputf(
	traceIDs belt.TraceIDs,
	level logger.Level,
	format string,
	args ...any,
) logger.PreHookResult {
	return h.filter(level)
}

func (h *LogLevelFilterT) ProcessInputFields(
	traceIDs belt.TraceIDs,
	level logger.Level,
	message string,
	fields field.AbstractFields,
) logger.PreHookResult {
	return h.filter(level)
}
