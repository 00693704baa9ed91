package stubcodec

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
)

func testSettings() codecproto.Settings {
	settings := codecproto.NewSettings()
	settings.Bitrate = 128000
	settings.Channels = 2
	settings.SampleRateIn = 48000
	return settings
}

func TestCodecBuffer(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, DefaultConfig(), testSettings())
	require.NoError(t, err)

	chunk := make([]byte, 512*2*bytesPerSample)
	_, packet, err := c.Encode(ctx, codecproto.FrameHeader{Frames: 512, PTS: 0}, chunk)
	require.NoError(t, err)
	require.Empty(t, packet)

	pts, packet, err := c.Encode(ctx, codecproto.FrameHeader{Frames: 512, PTS: 512}, chunk)
	require.NoError(t, err)
	require.Equal(t, int64(0), pts)
	require.Len(t, packet, 128000*1024/48000/8)

	_, packet, err = c.Encode(ctx, codecproto.FrameHeader{Frames: 512, PTS: 1024}, chunk)
	require.NoError(t, err)
	require.Empty(t, packet)

	pts, _, err = c.Encode(ctx, codecproto.FrameHeader{Frames: 512, PTS: 1536}, chunk)
	require.NoError(t, err)
	require.Equal(t, int64(1024), pts)
}

func TestCodecEcho(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Mode = ModeEcho
	cfg.PrimingCalls = 2
	c, err := New(ctx, cfg, testSettings())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		payload := []byte{byte(i), 1, 2}
		pts, packet, err := c.Encode(ctx, codecproto.FrameHeader{PTS: int64(i)}, payload)
		require.NoError(t, err)
		if i < 2 {
			require.Nil(t, packet)
			continue
		}
		require.Equal(t, payload, packet)
		require.Equal(t, int64(i), pts)
	}
}

func TestCodecFixed(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Mode = ModeFixed
	cfg.PacketSize = 200
	c, err := New(ctx, cfg, testSettings())
	require.NoError(t, err)

	_, packet, err := c.Encode(ctx, codecproto.FrameHeader{}, make([]byte, 4096))
	require.NoError(t, err)
	require.Len(t, packet, 200)
}

func TestCodecCrash(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.CrashAfter = 1
	c, err := New(ctx, cfg, testSettings())
	require.NoError(t, err)
	var exitCode int
	c.Exit = func(code int) { exitCode = code }

	_, _, err = c.Encode(ctx, codecproto.FrameHeader{}, nil)
	require.NoError(t, err)
	require.Zero(t, exitCode)

	_, _, _ = c.Encode(ctx, codecproto.FrameHeader{}, nil)
	require.Equal(t, ExitCodeCrash, exitCode)
}

func TestCodecInvalidSettings(t *testing.T) {
	settings := testSettings()
	settings.Channels = 0
	_, err := New(context.Background(), DefaultConfig(), settings)
	require.Error(t, err)
}

func TestExtraData(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ExtraDataAfter = 1
	c, err := New(ctx, cfg, testSettings())
	require.NoError(t, err)

	b, err := c.ExtraData(ctx)
	require.NoError(t, err)
	require.Empty(t, b)

	b, err = c.ExtraData(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{0x11, 0x90}, b)
}

func TestAudioSpecificConfig(t *testing.T) {
	b, err := AudioSpecificConfig(44100, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x10}, b)

	_, err = AudioSpecificConfig(44000, 2)
	require.Error(t, err)
	_, err = AudioSpecificConfig(44100, 8)
	require.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvMode, "echo")
	t.Setenv(EnvPrimingCalls, "3")
	t.Setenv(EnvExtraData, "1190")
	t.Setenv(EnvBitrates, "64000, 128000")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeEcho, cfg.Mode)
	require.Equal(t, 3, cfg.PrimingCalls)
	require.Equal(t, []byte{0x11, 0x90}, cfg.ExtraData)
	require.Equal(t, []uint32{64000, 128000}, cfg.Bitrates)
	require.Equal(t, uint32(1024), cfg.FramesPerPacket)

	t.Setenv(EnvMode, "wav")
	_, err = ConfigFromEnv()
	require.Error(t, err)
}

func TestRunList(t *testing.T) {
	t.Setenv(EnvSampleRates, "44100,48000")
	t.Setenv(EnvBitrates, "96000,128000")

	var out bytes.Buffer
	code := Run(context.Background(), []string{codecproto.ListArgument}, bytes.NewReader(nil), &out)
	require.Zero(t, code)
	require.Equal(t, "\"samplerates\": [44100, 48000],\n\"bitrates\": [96000, 128000]\n", out.String())
}

func TestRunUnavailable(t *testing.T) {
	t.Setenv(EnvUnavailable, "1")
	code := Run(context.Background(), nil, bytes.NewReader(nil), &bytes.Buffer{})
	require.Equal(t, codecproto.ExitCodeUnavailable, code)
}

func TestRunSession(t *testing.T) {
	t.Setenv(EnvMode, string(ModeFixed))
	t.Setenv(EnvPacketSize, "200")

	settings := testSettings()
	in, _ := settings.MarshalBinary()
	header := codecproto.FrameHeader{Size: 4096, Frames: 512, Flags: codecproto.FlagEncode}
	b, _ := header.MarshalBinary()
	in = append(in, b...)
	in = append(in, make([]byte, 4096)...)

	var out bytes.Buffer
	code := Run(context.Background(), nil, bytes.NewReader(in), &out)
	require.Zero(t, code)

	var echo codecproto.Settings
	require.NoError(t, echo.UnmarshalBinary(out.Next(codecproto.SettingsSize)))
	require.Equal(t, uint32(1024), echo.OutFramesPerPacket)

	var resp codecproto.FrameHeader
	require.NoError(t, resp.UnmarshalBinary(out.Next(codecproto.HeaderSize)))
	require.Equal(t, uint32(200), resp.Size)
	require.Equal(t, codecproto.FlagEncode, resp.Flags)
	require.Equal(t, 200, out.Len())
}
