package safeencoder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/coencoder/pkg/stubcodec"
)

const envRunStub = "SAFEENCODER_TEST_RUN_STUB"

// TestMain turns the test binary into the encoder co-process when it is
// started by the tests themselves.
func TestMain(m *testing.M) {
	if os.Getenv(envRunStub) == "" {
		os.Exit(m.Run())
	}

	ll := logrus.New()
	ll.SetOutput(os.Stderr)
	ll.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	ctx := logger.CtxWithLogger(context.Background(), xlogrus.New(ll).WithLevel(logger.LevelInfo))
	os.Exit(stubcodec.Run(ctx, os.Args[1:], os.Stdin, os.Stdout))
}

func testContext(t *testing.T) context.Context {
	ll := xlogrus.DefaultLogrusLogger()
	ll.SetOutput(os.Stderr)
	l := xlogrus.New(ll).WithLevel(logger.LevelTrace)
	return logger.CtxWithLogger(context.Background(), l)
}

type recordingSink struct {
	locker  sync.Mutex
	records []string
}

func (s *recordingSink) Logf(level logger.Level, format string, args ...any) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.records = append(s.records, fmt.Sprintf(format, args...))
}

func (s *recordingSink) Count(substr string) int {
	s.locker.Lock()
	defer s.locker.Unlock()
	count := 0
	for _, record := range s.records {
		if strings.Contains(record, substr) {
			count++
		}
	}
	return count
}

func stubProcess(env map[string]string) ProcessConfig {
	merged := map[string]string{envRunStub: "1"}
	for k, v := range env {
		merged[k] = v
	}
	return ProcessConfig{
		ExecutablePath: os.Args[0],
		Env:            merged,
	}
}

func stubConfig(sink *recordingSink, env map[string]string) Config {
	return Config{
		Name:           "stub",
		Process:        stubProcess(env),
		Bitrate:        128000,
		Channels:       2,
		SampleRate:     48000,
		AllowHEAAC:     true,
		DiagnosticSink: sink,
	}
}

func countFDs(t *testing.T) int {
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func requireReaped(t *testing.T, pid int) {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	require.ErrorIs(t, err, os.ErrNotExist, "process %d is still in the process table", pid)
}
