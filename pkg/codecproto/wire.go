package codecproto

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	ProtocolVersion uint32 = 1

	SettingsSize = 32
	HeaderSize   = 24

	// MaxPayloadSize bounds the payload a header may announce; anything
	// larger is treated as a corrupted stream.
	MaxPayloadSize = 64 << 20
)

const (
	// ListArgument makes the co-process print its capability listing to
	// stdout and exit instead of serving a session.
	ListArgument = "-l"

	// ExitCodeUnavailable is the exit status of a co-process that cannot
	// provide the codec at all (e.g. it is not installed).
	ExitCodeUnavailable = 3
)

var byteOrder = binary.NativeEndian

type Flags uint32

const (
	FlagAllowHEAAC Flags = 1 << iota
	FlagEncode
	FlagExtraData
	FlagExit
)

func (f Flags) String() string {
	var parts []string
	for _, item := range []struct {
		flag Flags
		name string
	}{
		{FlagAllowHEAAC, "ALLOW_HE_AAC"},
		{FlagEncode, "ENCODE"},
		{FlagExtraData, "EXTRA_DATA"},
		{FlagExit, "EXIT"},
	} {
		if f&item.flag != 0 {
			parts = append(parts, item.name)
			f &^= item.flag
		}
	}
	if f != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(f)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

type Settings struct {
	// Checked by the co-process.
	StructSize      uint32
	ProtocolVersion uint32

	// Set by the host.
	Bitrate       uint32 // bps, not kbps
	Channels      uint32
	SampleRateIn  uint32
	SampleRateOut uint32 // 0 to match SampleRateIn
	Flags         Flags

	// Set by the co-process.
	OutFramesPerPacket uint32
}

// NewSettings returns a record with the size and version tags of this build.
func NewSettings() Settings {
	return Settings{
		StructSize:      SettingsSize,
		ProtocolVersion: ProtocolVersion,
	}
}

func (s *Settings) words() [8]*uint32 {
	return [8]*uint32{
		&s.StructSize,
		&s.ProtocolVersion,
		&s.Bitrate,
		&s.Channels,
		&s.SampleRateIn,
		&s.SampleRateOut,
		(*uint32)(&s.Flags),
		&s.OutFramesPerPacket,
	}
}

func (s *Settings) AppendBinary(b []byte) ([]byte, error) {
	for _, w := range s.words() {
		b = byteOrder.AppendUint32(b, *w)
	}
	return b, nil
}

func (s *Settings) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, SettingsSize))
}

func (s *Settings) UnmarshalBinary(b []byte) error {
	if len(b) != SettingsSize {
		return fmt.Errorf("expected %d bytes of settings, got %d", SettingsSize, len(b))
	}
	for idx, w := range s.words() {
		*w = byteOrder.Uint32(b[idx*4:])
	}
	return nil
}

type FrameHeader struct {
	Size   uint32
	Frames uint32
	PTS    int64
	Flags  Flags
}

func (h *FrameHeader) AppendBinary(b []byte) ([]byte, error) {
	b = byteOrder.AppendUint32(b, h.Size)
	b = byteOrder.AppendUint32(b, h.Frames)
	b = byteOrder.AppendUint64(b, uint64(h.PTS))
	b = byteOrder.AppendUint32(b, uint32(h.Flags))
	b = byteOrder.AppendUint32(b, 0)
	return b, nil
}

func (h *FrameHeader) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, HeaderSize))
}

func (h *FrameHeader) UnmarshalBinary(b []byte) error {
	if len(b) != HeaderSize {
		return fmt.Errorf("expected %d bytes of frame header, got %d", HeaderSize, len(b))
	}
	h.Size = byteOrder.Uint32(b[0:])
	h.Frames = byteOrder.Uint32(b[4:])
	h.PTS = int64(byteOrder.Uint64(b[8:]))
	h.Flags = Flags(byteOrder.Uint32(b[16:]))
	return nil
}
