package diagdrain

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/coencoder/pkg/observability"
)

const ChunkSize = 1024

// Drain forwards the diagnostic stream of a co-process to a Sink until the
// stream ends.
type Drain struct {
	name string
	done chan struct{}
}

// Start launches the drain goroutine. The caller keeps the ownership of r
// and must close it only after Wait has returned.
func Start(
	ctx context.Context,
	r io.Reader,
	sink Sink,
	name string,
) *Drain {
	d := &Drain{
		name: name,
		done: make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		defer close(d.done)
		d.run(ctx, r, sink)
	})
	return d
}

func (d *Drain) run(
	ctx context.Context,
	r io.Reader,
	sink Sink,
) {
	logger.Debugf(ctx, "drain '%s' started", d.name)
	defer logger.Debugf(ctx, "drain '%s' finished", d.name)

	w := NewLineWriter(sink, d.name)
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
			logger.Debugf(ctx, "unable to read the diagnostic stream of '%s': %v", d.name, err)
		}
		w.Flush()
		sink.Logf(logger.LevelInfo, "[%s] pipe closed", d.name)
		return
	}
}

// Done is closed when the drain goroutine has returned.
func (d *Drain) Done() <-chan struct{} {
	return d.done
}

// Wait joins the drain goroutine.
func (d *Drain) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
