package codecproto

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Engine is the host side of the protocol. It is not safe for concurrent
// use: the protocol has exactly one request in flight.
type Engine struct {
	request io.Writer
	data    io.Reader

	headerBuf  [HeaderSize]byte
	payloadBuf []byte
}

func NewEngine(request io.Writer, data io.Reader) *Engine {
	return &Engine{
		request: request,
		data:    data,
	}
}

// Handshake sends settings and replaces them with the co-process's echo.
func (e *Engine) Handshake(
	ctx context.Context,
	settings *Settings,
) (_err error) {
	logger.Tracef(ctx, "Handshake(ctx, %#+v)", *settings)
	defer func() { logger.Tracef(ctx, "/Handshake(ctx, %#+v): %v", *settings, _err) }()

	sent := *settings
	b, _ := sent.MarshalBinary()
	if err := writeFull(e.request, "settings", b); err != nil {
		return err
	}

	if err := readFull(e.data, "settings", b); err != nil {
		return err
	}
	var echo Settings
	_ = echo.UnmarshalBinary(b)

	if echo.StructSize != sent.StructSize {
		return fmt.Errorf("%w: sent %d, echoed %d", ErrSettingsSizeMismatch, sent.StructSize, echo.StructSize)
	}
	if echo.ProtocolVersion != sent.ProtocolVersion {
		return fmt.Errorf("%w: sent %d, echoed %d", ErrVersionMismatch, sent.ProtocolVersion, echo.ProtocolVersion)
	}

	*settings = echo
	return nil
}

// Exchange performs one request/response round trip. The returned payload
// aliases an internal buffer and is valid until the next call.
func (e *Engine) Exchange(
	ctx context.Context,
	req FrameHeader,
	payload []byte,
) (FrameHeader, []byte, error) {
	logger.Tracef(ctx, "Exchange(ctx, %s, size:%d)", req.Flags, len(payload))

	if err := writeFrame(e.request, e.headerBuf[:], req, payload); err != nil {
		return FrameHeader{}, nil, err
	}

	resp, err := readHeader(e.data, e.headerBuf[:])
	if err != nil {
		return FrameHeader{}, nil, err
	}
	logger.Tracef(ctx, "response: %#+v", resp)

	if kind := req.Flags & (FlagEncode | FlagExtraData); kind != 0 && resp.Flags&kind == 0 {
		return resp, nil, fmt.Errorf("%w: requested %s, got %s", ErrUnexpectedResponse, kind, resp.Flags)
	}
	if resp.Size > MaxPayloadSize {
		return resp, nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, resp.Size)
	}
	if resp.Size == 0 {
		return resp, nil, nil
	}

	if cap(e.payloadBuf) < int(resp.Size) {
		e.payloadBuf = make([]byte, resp.Size)
	}
	e.payloadBuf = e.payloadBuf[:resp.Size]
	if err := readFull(e.data, "frame payload", e.payloadBuf); err != nil {
		return resp, nil, err
	}
	return resp, e.payloadBuf, nil
}

// Encode sends raw audio and returns the encoded packet, if the
// co-process produced one. A nil packet with a nil error means the input
// was consumed without output yet.
func (e *Engine) Encode(
	ctx context.Context,
	payload []byte,
	frames uint32,
	pts int64,
) (FrameHeader, []byte, error) {
	return e.Exchange(ctx, FrameHeader{
		Frames: frames,
		PTS:    pts,
		Flags:  FlagEncode,
	}, payload)
}

// QueryExtraData asks for the codec initialization bytes. The result is a
// copy owned by the caller; it is empty if the codec has none yet.
func (e *Engine) QueryExtraData(ctx context.Context) ([]byte, error) {
	_, payload, err := e.Exchange(ctx, FrameHeader{Flags: FlagExtraData}, nil)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), payload...), nil
}

// SendExit asks the co-process to leave its loop without waiting for
// end-of-stream. No response is expected.
func (e *Engine) SendExit(ctx context.Context) error {
	logger.Tracef(ctx, "SendExit")
	return writeFrame(e.request, e.headerBuf[:], FrameHeader{Flags: FlagExit}, nil)
}
