package diagdrain

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	locker  sync.Mutex
	records []string
	levels  []logger.Level
}

func (s *recordingSink) Logf(level logger.Level, format string, args ...any) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.records = append(s.records, fmt.Sprintf(format, args...))
	s.levels = append(s.levels, level)
}

func (s *recordingSink) Records() []string {
	s.locker.Lock()
	defer s.locker.Unlock()
	return append([]string(nil), s.records...)
}

func TestLineWriterReassembly(t *testing.T) {
	sink := &recordingSink{}
	w := NewLineWriter(sink, "enc")

	n, err := w.Write([]byte("foo\nb"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []string{"[enc] pipe: foo"}, sink.Records())
	require.Equal(t, 1, w.Pending())

	_, err = w.Write([]byte("ar\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"[enc] pipe: foo", "[enc] pipe: bar"}, sink.Records())
	require.Zero(t, w.Pending())
	assert.Equal(t, []logger.Level{logger.LevelInfo, logger.LevelInfo}, sink.levels)
}

func TestLineWriterEmptyLines(t *testing.T) {
	sink := &recordingSink{}
	w := NewLineWriter(sink, "enc")

	_, err := w.Write([]byte("\n\nx\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"[enc] pipe: ", "[enc] pipe: ", "[enc] pipe: x"}, sink.Records())

	w.Flush()
	require.Len(t, sink.Records(), 3)
}

func TestDrain(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	r, w := io.Pipe()

	d := Start(ctx, r, sink, "enc")

	longLine := strings.Repeat("z", 3*ChunkSize+17)
	for _, chunk := range []string{"first\nsec", "ond\n", longLine, "\n", "tail"} {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, d.Wait(ctx))
	<-d.Done()

	require.Equal(t, []string{
		"[enc] pipe: first",
		"[enc] pipe: second",
		"[enc] pipe: " + longLine,
		"[enc] pipe: tail",
		"[enc] pipe closed",
	}, sink.Records())
}

func TestDrainReadError(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	r, w := io.Pipe()

	d := Start(ctx, r, sink, "enc")
	_, err := w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.CloseWithError(fmt.Errorf("broken")))
	require.NoError(t, d.Wait(ctx))

	require.Equal(t, []string{"[enc] pipe: partial", "[enc] pipe closed"}, sink.Records())
}

func TestDrainWaitCanceled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	d := Start(context.Background(), r, &recordingSink{}, "enc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Wait(ctx), context.Canceled)
}
