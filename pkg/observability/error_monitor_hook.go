package observability

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/DataDog/gostackparse"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	xruntime "github.com/facebookincubator/go-belt/pkg/runtime"
	errmontypes "github.com/facebookincubator/go-belt/tool/experimental/errmon/types"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/adapter"
	loggertypes "github.com/facebookincubator/go-belt/tool/logger/types"
)

const maxStackDumpSize = 10 << 20

// ErrorMonitorLoggerHook forwards every log entry of the warning level or
// more severe to an error monitor (e.g. Sentry), together with a dump of
// all goroutines. Reports are sent asynchronously and dropped if the
// queue is full.
type ErrorMonitorLoggerHook struct {
	ErrorMonitor errmontypes.ErrorMonitor
	SendChan     chan ErrorMonitorMessage
}

type ErrorMonitorMessage struct {
	Entry              *loggertypes.Entry
	Goroutines         []errmontypes.Goroutine
	CurrentGoroutineID int
	StackTrace         xruntime.PCs
}

var _ loggertypes.PreHook = (*ErrorMonitorLoggerHook)(nil)

func NewErrorMonitorLoggerHook(
	ctx context.Context,
	errorMonitor errmontypes.ErrorMonitor,
) *ErrorMonitorLoggerHook {
	h := &ErrorMonitorLoggerHook{
		ErrorMonitor: errorMonitor,
		SendChan:     make(chan ErrorMonitorMessage, 10),
	}
	GoSafe(ctx, h.senderLoop)
	return h
}

func (h *ErrorMonitorLoggerHook) ProcessInput(
	traceIDs belt.TraceIDs,
	level loggertypes.Level,
	args ...any,
) loggertypes.PreHookResult {
	h.capture(level, func(l loggertypes.Logger) { l.Log(level, args...) })
	return loggertypes.PreHookResult{}
}

func (h *ErrorMonitorLoggerHook) ProcessInputf(
	traceIDs belt.TraceIDs,
	level loggertypes.Level,
	format string,
	args ...any,
) loggertypes.PreHookResult {
	h.capture(level, func(l loggertypes.Logger) { l.Logf(level, format, args...) })
	return loggertypes.PreHookResult{}
}

func (h *ErrorMonitorLoggerHook) ProcessInputFields(
	traceIDs belt.TraceIDs,
	level loggertypes.Level,
	message string,
	fields field.AbstractFields,
) loggertypes.PreHookResult {
	h.capture(level, func(l loggertypes.Logger) { l.LogFields(level, message, fields) })
	return loggertypes.PreHookResult{}
}

// capture renders the entry through a throw-away logger and queues it.
func (h *ErrorMonitorLoggerHook) capture(
	level loggertypes.Level,
	logFn func(loggertypes.Logger),
) {
	if level > loggertypes.LevelWarning {
		return
	}
	emitter := &lastEntryEmitter{}
	logFn(adapter.LoggerFromEmitter(emitter).WithLevel(loggertypes.LevelWarning))
	if emitter.LastEntry == nil {
		return
	}

	goroutines, currentGoroutineID := getGoroutines()
	select {
	case h.SendChan <- ErrorMonitorMessage{
		Entry:              copyEntry(emitter.LastEntry),
		Goroutines:         goroutines,
		CurrentGoroutineID: currentGoroutineID,
		StackTrace:         xruntime.CallerStackTrace(nil),
	}:
	default:
		logger.Default().Errorf("unable to send an error to the error monitor, the queue is full")
	}
}

func (h *ErrorMonitorLoggerHook) senderLoop(ctx context.Context) {
	for {
		var message ErrorMonitorMessage
		select {
		case <-ctx.Done():
			return
		case message = <-h.SendChan:
		}
		h.ErrorMonitor.Emitter().Emit(&errmontypes.Event{
			Entry:       *message.Entry,
			ExternalIDs: []any{},
			Exception: errmontypes.Exception{
				IsPanic:    message.Entry.Level <= loggertypes.LevelPanic,
				Error:      fmt.Errorf("[%s] %s", message.Entry.Level, message.Entry.Message),
				StackTrace: message.StackTrace,
			},
			CurrentGoroutineID: message.CurrentGoroutineID,
			Goroutines:         message.Goroutines,
		})
	}
}

func copyEntry(entry *loggertypes.Entry) *loggertypes.Entry {
	entryDup := *entry
	if entry.Fields != nil {
		fields := make(field.Fields, 0, entry.Fields.Len())
		entry.Fields.ForEachField(func(f *field.Field) bool {
			fields = append(fields, *f)
			return true
		})
		entryDup.Fields = fields
	}
	return &entryDup
}

func getGoroutines() ([]errmontypes.Goroutine, int) {
	stackBuffer := make([]byte, min(65536*runtime.NumGoroutine(), maxStackDumpSize))

	n := runtime.Stack(stackBuffer, true)
	goroutines, _ := gostackparse.Parse(bytes.NewReader(stackBuffer[:n]))
	result := make([]errmontypes.Goroutine, 0, len(goroutines))
	for _, goroutine := range goroutines {
		result = append(result, *goroutine)
	}

	n = runtime.Stack(stackBuffer, false)
	current, _ := gostackparse.Parse(bytes.NewReader(stackBuffer[:n]))
	if len(current) != 1 {
		return result, 0
	}
	return result, current[0].ID
}

type lastEntryEmitter struct {
	LastEntry *loggertypes.Entry
}

var _ loggertypes.Emitter = (*lastEntryEmitter)(nil)

func (e *lastEntryEmitter) Emit(entry *loggertypes.Entry) {
	e.LastEntry = entry
}

func (e *lastEntryEmitter) Flush() {}
