package stubcodec

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvMode            = "COENCODER_STUB_MODE"
	EnvFramesPerPacket = "COENCODER_STUB_FRAMES_PER_PACKET"
	EnvPrimingCalls    = "COENCODER_STUB_PRIMING_CALLS"
	EnvPacketSize      = "COENCODER_STUB_PACKET_SIZE"
	EnvExtraData       = "COENCODER_STUB_EXTRA_DATA"
	EnvExtraDataAfter  = "COENCODER_STUB_EXTRA_DATA_AFTER"
	EnvCrashAfter      = "COENCODER_STUB_CRASH_AFTER"
	EnvStallAfter      = "COENCODER_STUB_STALL_AFTER"
	EnvUnavailable     = "COENCODER_STUB_UNAVAILABLE"
	EnvSampleRates     = "COENCODER_STUB_SAMPLE_RATES"
	EnvBitrates        = "COENCODER_STUB_BITRATES"
)

type Mode string

const (
	// ModeBuffer accumulates input and emits one packet per
	// FramesPerPacket frames.
	ModeBuffer = Mode("buffer")

	// ModeEcho returns every payload as is.
	ModeEcho = Mode("echo")

	// ModeFixed returns a PacketSize-byte packet for every request.
	ModeFixed = Mode("fixed")
)

type Config struct {
	Mode            Mode
	FramesPerPacket uint32

	// PrimingCalls is the amount of encode requests answered with no
	// packet before the first packet.
	PrimingCalls int

	// PacketSize is the size of a produced packet in ModeBuffer and
	// ModeFixed; zero derives it from the bitrate.
	PacketSize int

	// ExtraData overrides the generated AudioSpecificConfig.
	ExtraData []byte

	// ExtraDataAfter is the amount of extra data queries answered with
	// nothing.
	ExtraDataAfter int

	// CrashAfter makes the process exit abnormally on the encode request
	// after that many requests; zero disables it.
	CrashAfter int

	// StallAfter makes the process hang forever on the encode request
	// after that many requests; zero disables it.
	StallAfter int

	// Unavailable makes the process exit with ExitCodeUnavailable right
	// away, as if the codec was not installed.
	Unavailable bool

	SampleRates []uint32
	Bitrates    []uint32
}

func DefaultConfig() Config {
	return Config{
		Mode:            ModeBuffer,
		FramesPerPacket: 1024,
		SampleRates:     []uint32{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000},
		Bitrates: []uint32{
			32000, 40000, 48000, 56000, 64000, 80000, 96000,
			112000, 128000, 160000, 192000, 224000, 256000, 320000,
		},
	}
}

// ConfigFromEnv returns DefaultConfig with the COENCODER_STUB_*
// environment variables applied.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(EnvMode); v != "" {
		switch mode := Mode(v); mode {
		case ModeBuffer, ModeEcho, ModeFixed:
			cfg.Mode = mode
		default:
			return cfg, fmt.Errorf("unknown mode '%s'", v)
		}
	}

	for _, item := range []struct {
		key string
		ptr *int
	}{
		{EnvPrimingCalls, &cfg.PrimingCalls},
		{EnvPacketSize, &cfg.PacketSize},
		{EnvExtraDataAfter, &cfg.ExtraDataAfter},
		{EnvCrashAfter, &cfg.CrashAfter},
		{EnvStallAfter, &cfg.StallAfter},
	} {
		v := os.Getenv(item.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid %s value '%s'", item.key, v)
		}
		*item.ptr = n
	}

	if v := os.Getenv(EnvFramesPerPacket); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return cfg, fmt.Errorf("invalid %s value '%s'", EnvFramesPerPacket, v)
		}
		cfg.FramesPerPacket = uint32(n)
	}

	if v := os.Getenv(EnvExtraData); v != "" {
		b, err := hex.DecodeString(v)
		if err != nil {
			return cfg, fmt.Errorf("unable to decode %s: %w", EnvExtraData, err)
		}
		cfg.ExtraData = b
	}

	if v := os.Getenv(EnvUnavailable); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s value '%s'", EnvUnavailable, v)
		}
		cfg.Unavailable = b
	}

	var err error
	if cfg.SampleRates, err = parseList(EnvSampleRates, cfg.SampleRates); err != nil {
		return cfg, err
	}
	if cfg.Bitrates, err = parseList(EnvBitrates, cfg.Bitrates); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseList(key string, fallback []uint32) ([]uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	var result []uint32
	for _, word := range strings.Split(v, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(word), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s item '%s': %w", key, word, err)
		}
		result = append(result, uint32(n))
	}
	return result, nil
}
