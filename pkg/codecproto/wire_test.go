package codecproto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsLayout(t *testing.T) {
	s := Settings{
		StructSize:         SettingsSize,
		ProtocolVersion:    ProtocolVersion,
		Bitrate:            128000,
		Channels:           2,
		SampleRateIn:       48000,
		SampleRateOut:      44100,
		Flags:              FlagAllowHEAAC,
		OutFramesPerPacket: 1024,
	}
	b, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SettingsSize)

	for idx, expected := range []uint32{SettingsSize, ProtocolVersion, 128000, 2, 48000, 44100, 1, 1024} {
		require.Equal(t, expected, binary.NativeEndian.Uint32(b[idx*4:]), "word %d", idx)
	}

	var parsed Settings
	require.NoError(t, parsed.UnmarshalBinary(b))
	require.Equal(t, s, parsed)

	require.Error(t, parsed.UnmarshalBinary(b[:SettingsSize-1]))
}

func TestFrameHeaderLayout(t *testing.T) {
	h := FrameHeader{
		Size:   200,
		Frames: 1024,
		PTS:    -2112,
		Flags:  FlagEncode,
	}
	b, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, HeaderSize)

	require.Equal(t, uint32(200), binary.NativeEndian.Uint32(b[0:]))
	require.Equal(t, uint32(1024), binary.NativeEndian.Uint32(b[4:]))
	require.Equal(t, int64(-2112), int64(binary.NativeEndian.Uint64(b[8:])))
	require.Equal(t, uint32(FlagEncode), binary.NativeEndian.Uint32(b[16:]))
	require.Equal(t, []byte{0, 0, 0, 0}, b[20:])

	var parsed FrameHeader
	require.NoError(t, parsed.UnmarshalBinary(b))
	require.Equal(t, h, parsed)
}

func TestFlagsString(t *testing.T) {
	require.Equal(t, "0", Flags(0).String())
	require.Equal(t, "ENCODE", FlagEncode.String())
	require.Equal(t, "ENCODE|EXTRA_DATA|0x100", (FlagEncode | FlagExtraData | 0x100).String())
}
