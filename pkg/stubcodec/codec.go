package stubcodec

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
)

const (
	bytesPerSample = 4 // interleaved float32

	// ExitCodeCrash is the exit status used to emulate a crashing codec.
	ExitCodeCrash = 70
)

var sampleRateIndexes = []uint32{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// Codec is a deterministic fake of an AAC encoder.
type Codec struct {
	Config   Config
	Settings codecproto.Settings

	// Exit terminates the process on an emulated crash.
	Exit func(code int)

	encodeCalls    int
	extraDataCalls int
	pending        []byte
	pendingPTS     int64
	packet         []byte
}

var _ codecproto.Codec = (*Codec)(nil)

func New(
	ctx context.Context,
	cfg Config,
	settings codecproto.Settings,
) (*Codec, error) {
	if settings.Channels == 0 {
		return nil, errors.New("the amount of channels is zero")
	}
	if settings.SampleRateIn == 0 {
		return nil, errors.New("the sample rate is zero")
	}
	if settings.Bitrate == 0 {
		return nil, errors.New("the bitrate is zero")
	}
	logger.Debugf(ctx, "creating a stub codec: %#+v", settings)
	return &Codec{
		Config:   cfg,
		Settings: settings,
		Exit:     os.Exit,
	}, nil
}

func (c *Codec) FramesPerPacket() uint32 {
	return c.Config.FramesPerPacket
}

func (c *Codec) sampleRateOut() uint32 {
	if c.Settings.SampleRateOut != 0 {
		return c.Settings.SampleRateOut
	}
	return c.Settings.SampleRateIn
}

func (c *Codec) packetSize() int {
	if c.Config.PacketSize > 0 {
		return c.Config.PacketSize
	}
	size := uint64(c.Settings.Bitrate) * uint64(c.Config.FramesPerPacket) / uint64(c.sampleRateOut()) / 8
	return max(int(size), 1)
}

func (c *Codec) Encode(
	ctx context.Context,
	in codecproto.FrameHeader,
	payload []byte,
) (int64, []byte, error) {
	c.encodeCalls++
	logger.Infof(ctx, "encode request #%d: %d bytes, %d frames, pts %d", c.encodeCalls, len(payload), in.Frames, in.PTS)

	if c.Config.CrashAfter > 0 && c.encodeCalls > c.Config.CrashAfter {
		logger.Errorf(ctx, "emulating a crash")
		c.Exit(ExitCodeCrash)
	}
	if c.Config.StallAfter > 0 && c.encodeCalls > c.Config.StallAfter {
		logger.Errorf(ctx, "emulating a stall")
		<-ctx.Done()
		return 0, nil, ctx.Err()
	}

	switch c.Config.Mode {
	case ModeEcho:
		if c.encodeCalls <= c.Config.PrimingCalls {
			return 0, nil, nil
		}
		return in.PTS, payload, nil
	case ModeFixed:
		if c.encodeCalls <= c.Config.PrimingCalls {
			return 0, nil, nil
		}
		return in.PTS, c.fill(c.packetSize(), in.PTS), nil
	case ModeBuffer:
		return c.encodeBuffered(in, payload)
	default:
		return 0, nil, fmt.Errorf("unknown mode '%s'", c.Config.Mode)
	}
}

func (c *Codec) encodeBuffered(
	in codecproto.FrameHeader,
	payload []byte,
) (int64, []byte, error) {
	frameSize := int(c.Settings.Channels) * bytesPerSample
	if len(c.pending) == 0 {
		c.pendingPTS = in.PTS
	}
	c.pending = append(c.pending, payload...)

	packetInputSize := int(c.Config.FramesPerPacket) * frameSize
	if len(c.pending) < packetInputSize {
		return 0, nil, nil
	}
	pts := c.pendingPTS
	c.pending = c.pending[:copy(c.pending, c.pending[packetInputSize:])]
	c.pendingPTS = pts + int64(c.Config.FramesPerPacket)
	return pts, c.fill(c.packetSize(), pts), nil
}

// fill produces a packet whose content depends only on the size and the
// timestamp.
func (c *Codec) fill(size int, pts int64) []byte {
	if cap(c.packet) < size {
		c.packet = make([]byte, size)
	}
	c.packet = c.packet[:size]
	for idx := range c.packet {
		c.packet[idx] = byte(int64(idx) + pts)
	}
	return c.packet
}

func (c *Codec) ExtraData(ctx context.Context) ([]byte, error) {
	c.extraDataCalls++
	logger.Infof(ctx, "extra data request #%d", c.extraDataCalls)
	if c.extraDataCalls <= c.Config.ExtraDataAfter {
		return nil, nil
	}
	if c.Config.ExtraData != nil {
		return c.Config.ExtraData, nil
	}
	return AudioSpecificConfig(c.sampleRateOut(), c.Settings.Channels)
}

func (c *Codec) Close() error {
	return nil
}

// AudioSpecificConfig builds the two-byte AAC-LC decoder configuration.
func AudioSpecificConfig(sampleRate uint32, channels uint32) ([]byte, error) {
	freqIndex := -1
	for idx, rate := range sampleRateIndexes {
		if rate == sampleRate {
			freqIndex = idx
			break
		}
	}
	if freqIndex < 0 {
		return nil, fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	if channels == 0 || channels > 7 {
		return nil, fmt.Errorf("unsupported amount of channels %d", channels)
	}
	const objectTypeLC = 2
	v := uint16(objectTypeLC)<<11 | uint16(freqIndex)<<7 | uint16(channels)<<3
	return []byte{byte(v >> 8), byte(v)}, nil
}
