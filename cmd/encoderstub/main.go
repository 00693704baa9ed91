// encoderstub is a pure-Go co-process speaking the encoder protocol with
// a deterministic fake codec. See pkg/stubcodec for its configuration.
package main

import (
	"context"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
	"github.com/xaionaro-go/coencoder/pkg/stubcodec"
)

const envLogLevel = "COENCODER_STUB_LOG_LEVEL"

func main() {
	// stdout carries the protocol, so everything else goes to stderr
	ll := logrus.New()
	ll.SetOutput(os.Stderr)
	ll.Formatter = &logrus.TextFormatter{DisableTimestamp: true}

	level := logger.LevelInfo
	if v := os.Getenv(envLogLevel); v != "" {
		if err := level.Set(v); err != nil {
			ll.Errorf("invalid %s value '%s': %v", envLogLevel, v, err)
		}
	}
	ll.SetLevel(xlogrus.LevelToLogrus(level))

	ctx := logger.CtxWithLogger(context.Background(), xlogrus.New(ll).WithLevel(level))
	ctx = belt.WithField(ctx, "process", "encoderstub")

	code := stubcodec.Run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	belt.Flush(ctx)
	os.Exit(code)
}
