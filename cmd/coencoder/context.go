package main

import (
	"context"
	"os"

	"github.com/facebookincubator/go-belt"
	xruntime "github.com/facebookincubator/go-belt/pkg/runtime"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	prometheusadapter "github.com/facebookincubator/go-belt/tool/experimental/metrics/implementation/prometheus"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
	"github.com/xaionaro-go/coencoder/pkg/observability"
)

var originalPCFilter xruntime.PCFilter

func init() {
	originalPCFilter = xruntime.DefaultCallerPCFilter
}

func setDefaultCallerPCFilter() {
	xruntime.DefaultCallerPCFilter = observability.CallerPCFilter(originalPCFilter)
}

func getContext() context.Context {
	ctx := context.Background()
	setDefaultCallerPCFilter()

	ctx = metrics.CtxWithMetrics(ctx, prometheusadapter.Default())

	ll := xlogrus.DefaultLogrusLogger()
	ll.SetOutput(os.Stderr)
	l := xlogrus.New(ll).WithLevel(logger.LevelTrace).WithPreHooks(&observability.LogLevelFilter)
	logrus.SetLevel(logrus.TraceLevel)

	ctx = logger.CtxWithLogger(ctx, l)
	ctx = belt.WithField(ctx, "program", "coencoder")
	ctx = belt.WithField(ctx, "pid", os.Getpid())

	l = logger.FromCtx(ctx)
	logger.Default = func() logger.Logger {
		return l
	}
	return ctx
}
