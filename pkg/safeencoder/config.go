package safeencoder

import (
	"time"

	"github.com/xaionaro-go/coencoder/pkg/clock"
	"github.com/xaionaro-go/coencoder/pkg/coprocess"
	"github.com/xaionaro-go/coencoder/pkg/diagdrain"
)

type ProcessConfig = coprocess.Config

type Config struct {
	// Name prefixes the diagnostic records of the co-process.
	Name string

	Process ProcessConfig

	Bitrate       uint32 // bps
	Channels      uint32
	SampleRate    uint32
	SampleRateOut uint32 // 0 to match SampleRate
	AllowHEAAC    bool

	// ExchangeTimeout kills the co-process if a single exchange takes
	// longer; zero waits forever.
	ExchangeTimeout time.Duration

	// Clock drives ExchangeTimeout; nil means clock.Get().
	Clock clock.Clock

	// DiagnosticSink receives the co-process stderr records; nil means
	// the logger from the context.
	DiagnosticSink diagdrain.Sink

	// StructSize and ProtocolVersion override the tags sent in the
	// handshake; zero means the ones of this build.
	StructSize      uint32
	ProtocolVersion uint32
}
