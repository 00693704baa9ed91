package observability

import (
	"runtime"
	"strings"
)

// CallerPCFilter wraps a go-belt caller filter so that log records are
// attributed to the code calling the logging helpers (locks, the
// diagnostic line splitter) instead of the helpers themselves.
func CallerPCFilter(
	originalPCFilter func(uintptr) bool,
) func(uintptr) bool {
	return func(pc uintptr) bool {
		if !originalPCFilter(pc) {
			return false
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			return true
		}
		if strings.Contains(fn.Name(), "xsync") {
			return false
		}
		file, _ := fn.FileLine(pc)
		switch {
		case strings.HasSuffix(file, "/line_writer.go"):
			return false
		case strings.HasSuffix(file, "/observability/go.go"):
			return false
		}
		return true
	}
}
