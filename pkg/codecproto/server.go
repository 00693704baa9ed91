package codecproto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Codec is the encoder living on the co-process side of the protocol.
type Codec interface {
	io.Closer

	FramesPerPacket() uint32

	// Encode consumes one input frame. A zero-length packet means no
	// output is ready yet. The returned slice may be reused by the codec
	// after the next call.
	Encode(ctx context.Context, in FrameHeader, payload []byte) (pts int64, packet []byte, err error)

	ExtraData(ctx context.Context) ([]byte, error)
}

type CodecFactory func(ctx context.Context, settings Settings) (Codec, error)

// Serve runs the co-process side of a session: it validates the settings
// record, constructs the codec, echoes the settings and then answers
// requests until end-of-stream or an EXIT frame.
func Serve(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	factory CodecFactory,
) (_err error) {
	logger.Debugf(ctx, "Serve")
	defer func() { logger.Debugf(ctx, "/Serve: %v", _err) }()

	w := bufio.NewWriter(out)

	var settings Settings
	b := make([]byte, SettingsSize)
	if err := readFull(in, "settings", b); err != nil {
		return fmt.Errorf("unable to read the settings: %w", err)
	}
	_ = settings.UnmarshalBinary(b)

	if settings.StructSize != SettingsSize {
		return fmt.Errorf("%w: got %d, expected %d", ErrSettingsSizeMismatch, settings.StructSize, SettingsSize)
	}
	if settings.ProtocolVersion != ProtocolVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrVersionMismatch, settings.ProtocolVersion, ProtocolVersion)
	}

	codec, err := factory(ctx, settings)
	if err != nil {
		return fmt.Errorf("unable to create the codec: %w", err)
	}
	defer func() {
		if err := codec.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the codec: %v", err)
		}
	}()

	settings.OutFramesPerPacket = codec.FramesPerPacket()
	b, _ = settings.AppendBinary(b[:0])
	if err := writeFull(w, "settings", b); err != nil {
		return fmt.Errorf("unable to write the settings: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("unable to flush the settings: %w", err)
	}

	var (
		headerBuf [HeaderSize]byte
		payload   []byte
	)
	for {
		req, err := readHeader(in, headerBuf[:])
		if err != nil {
			var ioErr *IOError
			if errors.As(err, &ioErr) && ioErr.Got == 0 && errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("unable to read a request header: %w", err)
		}
		if req.Size > MaxPayloadSize {
			return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, req.Size)
		}

		if cap(payload) < int(req.Size) {
			payload = make([]byte, req.Size)
		}
		payload = payload[:req.Size]
		if err := readFull(in, "frame payload", payload); err != nil {
			return fmt.Errorf("unable to read a request payload: %w", err)
		}

		if req.Flags&FlagEncode != 0 {
			resp := FrameHeader{Flags: FlagEncode}
			pts, packet, err := codec.Encode(ctx, req, payload)
			if err != nil {
				logger.Errorf(ctx, "unable to encode: %v", err)
				packet = nil
			}
			if len(packet) > 0 {
				resp.Frames = codec.FramesPerPacket()
				resp.PTS = pts
			}
			if err := writeFrame(w, headerBuf[:], resp, packet); err != nil {
				return fmt.Errorf("unable to write an encoded packet: %w", err)
			}
		}

		if req.Flags&FlagExtraData != 0 {
			extraData, err := codec.ExtraData(ctx)
			if err != nil {
				logger.Errorf(ctx, "unable to get the extra data: %v", err)
				extraData = nil
			}
			if err := writeFrame(w, headerBuf[:], FrameHeader{Flags: FlagExtraData}, extraData); err != nil {
				return fmt.Errorf("unable to write the extra data: %w", err)
			}
		}

		if err := w.Flush(); err != nil {
			return fmt.Errorf("unable to flush a response: %w", err)
		}

		if req.Flags&FlagExit != 0 {
			return nil
		}
	}
}
