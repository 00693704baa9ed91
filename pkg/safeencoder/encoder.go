package safeencoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/coencoder/pkg/clock"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
	"github.com/xaionaro-go/coencoder/pkg/coprocess"
	"github.com/xaionaro-go/coencoder/pkg/diagdrain"
	"github.com/xaionaro-go/xsync"
)

const bytesPerSample = 4 // interleaved float32

// Packet is one encoded audio packet. Data aliases a buffer reused by
// the session and is valid until the next Encode.
type Packet struct {
	Data        []byte
	PTS         int64
	DTS         int64
	TimebaseNum uint32
	TimebaseDen uint32
	Keyframe    bool
}

// Encoder is an encoding session backed by a dedicated co-process.
type Encoder struct {
	ctx       context.Context
	locker    xsync.Mutex
	config    Config
	sessionID string
	state     atomic.Uint32
	clock     clock.Clock

	process *coprocess.Process
	engine  *codecproto.Engine
	drain   *diagdrain.Drain

	framesPerPacket uint32
	extraData       []byte
	exitState       *os.ProcessState
	closed          bool
}

// New spawns the co-process, starts draining its diagnostics and
// negotiates the settings. On failure nothing is left behind: the
// co-process is reaped and the drain is joined before New returns.
func New(
	ctx context.Context,
	cfg Config,
) (_ret *Encoder, _err error) {
	logger.Debugf(ctx, "New(ctx, %#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/New(ctx, %#+v): %v", cfg, _err) }()

	if cfg.Bitrate == 0 {
		return nil, ErrInvalidBitrate
	}
	if cfg.Name == "" {
		cfg.Name = "coencoder"
	}

	e := &Encoder{
		config:    cfg,
		sessionID: uuid.NewString(),
		clock:     cfg.Clock,
	}
	if e.clock == nil {
		e.clock = clock.Get()
	}
	ctx = belt.WithField(ctx, "encoder_session", e.sessionID)
	ctx = belt.WithField(ctx, "encoder_name", cfg.Name)
	e.ctx = ctx

	e.setState(StateSpawning)
	proc, err := coprocess.Spawn(ctx, cfg.Process)
	if err != nil {
		e.setState(StateSpawnFailed)
		if errors.Is(err, coprocess.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrSubprocessUnavailable, err)
		}
		return nil, &SetupError{Err: err}
	}
	e.process = proc
	ctx = belt.WithField(ctx, "encoder_pid", proc.PID())
	e.ctx = ctx

	sink := cfg.DiagnosticSink
	if sink == nil {
		sink = logger.FromCtx(ctx)
	}
	e.drain = diagdrain.Start(ctx, proc.DiagnosticReader(), sink, cfg.Name)
	e.engine = codecproto.NewEngine(proc.RequestWriter(), proc.DataReader())

	e.setState(StateHandshaking)
	settings := cfg.settings()
	err = e.withWatchdog(ctx, func() error {
		return e.engine.Handshake(ctx, &settings)
	})
	if err == nil && settings.OutFramesPerPacket == 0 {
		err = errors.New("the co-process reported zero frames per packet")
	}
	if err != nil {
		e.setState(StateHandshakeFailed)
		if closeErr := e.teardown(ctx); closeErr != nil {
			logger.Errorf(ctx, "unable to tear down the co-process: %v", closeErr)
		}
		handshakeErr := &HandshakeError{
			PID:       proc.PID(),
			ExitState: e.exitState,
			Err:       err,
		}
		if e.exitState != nil && e.exitState.ExitCode() == codecproto.ExitCodeUnavailable {
			return nil, fmt.Errorf("%w: %w", ErrSubprocessUnavailable, handshakeErr)
		}
		return nil, handshakeErr
	}

	e.framesPerPacket = settings.OutFramesPerPacket
	e.setState(StateReady)
	logger.Debugf(ctx, "the encoder is ready: %d frames per packet", e.framesPerPacket)
	return e, nil
}

func (cfg Config) settings() codecproto.Settings {
	settings := codecproto.NewSettings()
	if cfg.StructSize != 0 {
		settings.StructSize = cfg.StructSize
	}
	if cfg.ProtocolVersion != 0 {
		settings.ProtocolVersion = cfg.ProtocolVersion
	}
	settings.Bitrate = cfg.Bitrate
	settings.Channels = cfg.Channels
	settings.SampleRateIn = cfg.SampleRate
	settings.SampleRateOut = cfg.SampleRateOut
	if cfg.AllowHEAAC {
		settings.Flags |= codecproto.FlagAllowHEAAC
	}
	return settings
}

func (e *Encoder) setState(state State) {
	old := State(e.state.Swap(uint32(state)))
	if e.ctx != nil {
		logger.Tracef(e.ctx, "state: %s -> %s", old, state)
	}
}

func (e *Encoder) State() State {
	return State(e.state.Load())
}

func (e *Encoder) Name() string {
	return e.config.Name
}

// SessionID is the random identifier attached to the session's log
// records.
func (e *Encoder) SessionID() string {
	return e.sessionID
}

func (e *Encoder) PID() int {
	return e.process.PID()
}

// FramesPerPacket is the amount of audio frames the co-process puts into
// one packet.
func (e *Encoder) FramesPerPacket() uint32 {
	return e.framesPerPacket
}

// withWatchdog runs fn, killing the co-process if fn does not return
// within ExchangeTimeout.
func (e *Encoder) withWatchdog(
	ctx context.Context,
	fn func() error,
) error {
	timeout := e.config.ExchangeTimeout
	if timeout <= 0 {
		return fn()
	}

	timer := e.clock.AfterFunc(timeout, func() {
		logger.Errorf(ctx, "the co-process has not answered within %v, killing it", timeout)
		if err := e.process.Kill(); err != nil {
			logger.Errorf(ctx, "unable to kill the co-process: %v", err)
		}
	})
	err := fn()
	if !timer.Stop() {
		if err == nil {
			return ErrExchangeTimeout
		}
		return fmt.Errorf("%w: %w", ErrExchangeTimeout, err)
	}
	return err
}

// Encode sends interleaved float32 samples. It returns a nil packet if
// the co-process consumed the input without producing output yet.
func (e *Encoder) Encode(
	ctx context.Context,
	payload []byte,
	pts int64,
) (*Packet, error) {
	return xsync.DoR2(ctx, &e.locker, func() (*Packet, error) {
		return e.encodeNoLock(ctx, payload, pts)
	})
}

func (e *Encoder) encodeNoLock(
	ctx context.Context,
	payload []byte,
	pts int64,
) (_ret *Packet, _err error) {
	logger.Tracef(ctx, "encode: %d bytes at %d", len(payload), pts)
	if state := e.State(); state != StateReady {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, state)
	}

	var frames uint32
	if e.config.Channels > 0 {
		frames = uint32(len(payload) / (bytesPerSample * int(e.config.Channels)))
	}

	var (
		resp   codecproto.FrameHeader
		packet []byte
	)
	err := e.withWatchdog(ctx, func() error {
		var err error
		resp, packet, err = e.engine.Encode(ctx, payload, frames, pts)
		return err
	})
	if err != nil {
		e.setState(StateProtocolFailed)
		return nil, &ProtocolError{Op: "encode", Err: err}
	}

	m := metrics.FromCtx(ctx)
	m.Count("coencoder_encode_requests").Add(1)
	if len(packet) == 0 {
		return nil, nil
	}
	m.Count("coencoder_packets").Add(1)
	m.Count("coencoder_packet_bytes").Add(uint64(len(packet)))

	return &Packet{
		Data:        packet,
		PTS:         resp.PTS,
		DTS:         resp.PTS,
		TimebaseNum: 1,
		TimebaseDen: e.config.SampleRate,
		Keyframe:    true,
	}, nil
}

// ExtraData returns the codec initialization bytes. They are queried
// lazily and cached once the co-process reports them;
// ErrExtraDataNotReady is returned until then.
func (e *Encoder) ExtraData(ctx context.Context) ([]byte, error) {
	return xsync.DoR2(ctx, &e.locker, func() ([]byte, error) {
		return e.extraDataNoLock(ctx)
	})
}

func (e *Encoder) extraDataNoLock(ctx context.Context) ([]byte, error) {
	if e.extraData != nil {
		return e.extraData, nil
	}
	if state := e.State(); state != StateReady {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, state)
	}

	var extraData []byte
	err := e.withWatchdog(ctx, func() error {
		var err error
		extraData, err = e.engine.QueryExtraData(ctx)
		return err
	})
	if err != nil {
		e.setState(StateProtocolFailed)
		return nil, &ProtocolError{Op: "query the extra data", Err: err}
	}
	if len(extraData) == 0 {
		return nil, ErrExtraDataNotReady
	}
	e.extraData = extraData
	return e.extraData, nil
}

// Kill forcibly terminates the co-process without waiting for the
// session lock; an exchange in flight fails with a ProtocolError. Close
// is still required afterwards.
func (e *Encoder) Kill() error {
	return e.process.Kill()
}

// ExitState is the status of the reaped co-process; nil before Close.
func (e *Encoder) ExitState() *os.ProcessState {
	return xsync.DoR1(e.ctx, &e.locker, func() *os.ProcessState {
		return e.exitState
	})
}

// Close shuts the session down and reaps the co-process. It is
// idempotent.
func (e *Encoder) Close() error {
	ctx := e.ctx
	return xsync.DoR1(ctx, &e.locker, func() error {
		if e.closed {
			return nil
		}
		return e.teardown(ctx)
	})
}

// teardown closes the request and data channels, reaps the co-process,
// joins the drain and finally closes the diagnostic channel.
func (e *Encoder) teardown(ctx context.Context) (_err error) {
	ctx = context.WithoutCancel(ctx)
	logger.Debugf(ctx, "teardown")
	defer func() { logger.Debugf(ctx, "/teardown: %v", _err) }()

	e.closed = true
	if !e.State().IsFailed() {
		e.setState(StateShuttingDown)
	}

	var result *multierror.Error
	if err := e.process.CloseRequest(); err != nil {
		result = multierror.Append(result, err)
	}

	exitState, err := e.process.Reap(ctx)
	e.exitState = exitState
	if err != nil {
		result = multierror.Append(result, err)
	}
	if exitState != nil && !exitState.Success() {
		logger.Warnf(ctx, "the co-process exited with: %v", exitState)
	}

	if err := e.drain.Wait(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("unable to join the diagnostic drain: %w", err))
	}

	if err := e.process.CloseDiagnostic(); err != nil {
		result = multierror.Append(result, err)
	}

	e.setState(StateTerminated)
	return result.ErrorOrNil()
}
