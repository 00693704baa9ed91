package codecproto

import (
	"io"
)

func writeFull(w io.Writer, subject string, b []byte) error {
	n, err := w.Write(b)
	if err != nil || n != len(b) {
		return &IOError{Op: "write", Subject: subject, Want: len(b), Got: n, Err: err}
	}
	return nil
}

func readFull(r io.Reader, subject string, b []byte) error {
	n, err := io.ReadFull(r, b)
	if err != nil {
		return &IOError{Op: "read", Subject: subject, Want: len(b), Got: n, Err: err}
	}
	return nil
}

func writeFrame(w io.Writer, buf []byte, header FrameHeader, payload []byte) error {
	header.Size = uint32(len(payload))
	b, _ := header.AppendBinary(buf[:0])
	if err := writeFull(w, "frame header", b); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return writeFull(w, "frame payload", payload)
}

func readHeader(r io.Reader, buf []byte) (FrameHeader, error) {
	var header FrameHeader
	b := buf[:HeaderSize]
	if err := readFull(r, "frame header", b); err != nil {
		return header, err
	}
	_ = header.UnmarshalBinary(b)
	return header, nil
}
