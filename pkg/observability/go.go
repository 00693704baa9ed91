package observability

import (
	"context"
)

func Call(ctx context.Context, fn func(context.Context)) {
	defer func() { PanicIfNotNil(ctx, recover()) }()
	fn(ctx)
}

func CallSafe(ctx context.Context, fn func(context.Context)) {
	defer func() { ReportPanicIfNotNil(ctx, recover()) }()
	fn(ctx)
}

// Go runs fn in a new goroutine; a panic is reported and then re-raised.
func Go(ctx context.Context, fn func(context.Context)) {
	go Call(ctx, fn)
}

// GoSafe runs fn in a new goroutine; a panic is reported and swallowed.
func GoSafe(ctx context.Context, fn func(context.Context)) {
	go CallSafe(ctx, fn)
}
