package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
	"github.com/xaionaro-go/coencoder/pkg/config"
	"github.com/xaionaro-go/coencoder/pkg/safeencoder"
)

const bytesPerSample = 4

type encodeStats struct {
	InputBytes  uint64
	OutputBytes uint64
	Frames      uint64
	Packets     uint64
	StartedAt   time.Time
}

func encode(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	cfg := readConfig(cmd)

	inputPath, err := cmd.Flags().GetString("input")
	assertNoError(cmd, err)
	outputPath, err := cmd.Flags().GetString("output")
	assertNoError(cmd, err)
	extraDataPath, err := cmd.Flags().GetString("extra-data")
	assertNoError(cmd, err)
	if inputPath == "" || outputPath == "" {
		fatalf(cmd, "--input and --output are required")
	}

	input, closeInput := openInput(cmd, inputPath)
	defer closeInput()
	output, closeOutput := openOutput(cmd, outputPath)
	defer closeOutput()

	sessionCfg, err := cfg.Session(sessionDefaults(ctx, cfg))
	assertNoError(cmd, err)

	enc, err := safeencoder.New(ctx, sessionCfg)
	assertNoError(cmd, err)

	stats, err := encodeStream(ctx, enc, sessionCfg.Channels, input, output)
	if err != nil {
		logger.Errorf(ctx, "unable to encode: %v", err)
	}

	if extraDataPath != "" {
		writeExtraData(ctx, enc, extraDataPath)
	}
	if err := enc.Close(); err != nil {
		logger.Errorf(ctx, "unable to close the encoder: %v", err)
	}

	var audioDuration time.Duration
	if sessionCfg.SampleRate > 0 {
		audioDuration = time.Duration(stats.Frames) * time.Second / time.Duration(sessionCfg.SampleRate)
	}
	fmt.Fprintf(cmd.ErrOrStderr(),
		"encoded %v of audio (%d frames) from %s into %d packets, %s; took %v\n",
		audioDuration,
		stats.Frames,
		humanize.Bytes(stats.InputBytes),
		stats.Packets,
		humanize.Bytes(stats.OutputBytes),
		time.Since(stats.StartedAt).Round(time.Millisecond),
	)
	if err != nil {
		closeOutput()
		fatalf(cmd, "%v", err)
	}
}

// sessionDefaults queries the co-process only if the config leaves the
// bitrate to the defaults.
func sessionDefaults(
	ctx context.Context,
	cfg config.Config,
) safeencoder.Defaults {
	if cfg.Encoder.BitrateKbps != 0 {
		return safeencoder.NewDefaults(nil)
	}
	processCfg, err := cfg.Process.Coprocess()
	if err != nil {
		logger.Warnf(ctx, "unable to query the capabilities: %v", err)
		return safeencoder.NewDefaults(nil)
	}
	caps, err := safeencoder.QueryCapabilities(ctx, processCfg, tentativeSettings(cfg))
	if err != nil {
		logger.Warnf(ctx, "unable to query the capabilities: %v", err)
	}
	return safeencoder.NewDefaults(caps)
}

func tentativeSettings(cfg config.Config) *codecproto.Settings {
	settings := codecproto.NewSettings()
	settings.Channels = cfg.Encoder.Channels
	settings.SampleRateIn = cfg.Encoder.SampleRate
	settings.SampleRateOut = cfg.Encoder.SampleRateOut
	if cfg.Encoder.AllowHEAAC == nil || *cfg.Encoder.AllowHEAAC {
		settings.Flags |= codecproto.FlagAllowHEAAC
	}
	return &settings
}

func encodeStream(
	ctx context.Context,
	enc *safeencoder.Encoder,
	channels uint32,
	input io.Reader,
	output io.Writer,
) (_ret encodeStats, _err error) {
	logger.Debugf(ctx, "encodeStream")
	defer func() { logger.Debugf(ctx, "/encodeStream: %v", _err) }()

	stats := encodeStats{StartedAt: time.Now()}
	frameSize := int(channels) * bytesPerSample
	if frameSize == 0 {
		return stats, fmt.Errorf("the amount of channels is zero")
	}
	buf := make([]byte, int(enc.FramesPerPacket())*frameSize)

	var pts int64
	for {
		n, err := io.ReadFull(input, buf)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return stats, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			n -= n % frameSize
		default:
			return stats, fmt.Errorf("unable to read the input: %w", err)
		}
		if n == 0 {
			return stats, nil
		}

		packet, encErr := enc.Encode(ctx, buf[:n], pts)
		if encErr != nil {
			return stats, encErr
		}
		frames := n / frameSize
		pts += int64(frames)
		stats.InputBytes += uint64(n)
		stats.Frames += uint64(frames)

		if packet != nil {
			if _, err := output.Write(packet.Data); err != nil {
				return stats, fmt.Errorf("unable to write a packet: %w", err)
			}
			stats.Packets++
			stats.OutputBytes += uint64(len(packet.Data))
		}

		if errors.Is(err, io.ErrUnexpectedEOF) {
			return stats, nil
		}
	}
}

func writeExtraData(
	ctx context.Context,
	enc *safeencoder.Encoder,
	path string,
) {
	extraData, err := enc.ExtraData(ctx)
	if err != nil {
		logger.Warnf(ctx, "unable to get the extra data: %v", err)
		return
	}
	if err := os.WriteFile(path, extraData, 0640); err != nil {
		logger.Errorf(ctx, "unable to write the extra data to '%s': %v", path, err)
	}
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func()) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}
	}
	f, err := os.Open(path)
	assertNoError(cmd, err)
	return f, func() { f.Close() }
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func()) {
	if path == "-" {
		return cmd.OutOrStdout(), func() {}
	}
	f, err := os.Create(path)
	assertNoError(cmd, err)
	return f, func() {
		if err := f.Close(); err != nil {
			logger.Errorf(cmd.Context(), "unable to close '%s': %v", path, err)
		}
	}
}
