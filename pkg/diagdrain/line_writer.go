package diagdrain

import (
	"bytes"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Sink receives the drained records. logger.Logger satisfies it.
type Sink interface {
	Logf(level logger.Level, format string, args ...any)
}

// LineWriter splits the written stream into '\n'-terminated lines and
// emits each complete line as one record. The trailing partial line is
// kept until more bytes arrive or Flush is called.
//
// It is not safe for concurrent use.
type LineWriter struct {
	Sink  Sink
	Name  string
	Level logger.Level

	buffer bytes.Buffer
}

var _ io.Writer = (*LineWriter)(nil)

func NewLineWriter(sink Sink, name string) *LineWriter {
	return &LineWriter{
		Sink:  sink,
		Name:  name,
		Level: logger.LevelInfo,
	}
}

func (w *LineWriter) Write(b []byte) (int, error) {
	w.buffer.Write(b)
	for {
		idx := bytes.IndexByte(w.buffer.Bytes(), '\n')
		if idx < 0 {
			return len(b), nil
		}
		line := w.buffer.Next(idx + 1)
		w.emit(line[:idx])
	}
}

// Flush emits the retained partial line, if any.
func (w *LineWriter) Flush() {
	if w.buffer.Len() == 0 {
		return
	}
	w.emit(w.buffer.Bytes())
	w.buffer.Reset()
}

// Pending returns the amount of bytes of the retained partial line.
func (w *LineWriter) Pending() int {
	return w.buffer.Len()
}

func (w *LineWriter) emit(line []byte) {
	w.Sink.Logf(w.Level, "[%s] pipe: %s", w.Name, string(line))
}
