package pktline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Decoder reads a lazy sequence of Frames from an underlying byte stream.
type Decoder struct {
	r io.Reader
}

// NewDecoder returns a Decoder reading pkt-lines from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next reads and classifies the next frame. It returns io.EOF when the
// underlying stream ends cleanly between frames (not mid-frame, which is a
// protocol error).
func (d *Decoder) Next() (Frame, error) {
	var lengthBytes [LengthSize]byte
	if _, err := io.ReadFull(d.r, lengthBytes[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("pktline: reading length prefix: %w", err)
	}

	length, err := parseLength(lengthBytes[:])
	if err != nil {
		return Frame{}, err
	}

	switch length {
	case 0:
		return Frame{Kind: Flush}, nil
	case 1:
		return Frame{Kind: Delim}, nil
	case 2:
		return Frame{Kind: ResponseEnd}, nil
	case 3:
		return Frame{}, fmt.Errorf("pktline: invalid length 0003")
	}

	dataLen := length - LengthSize
	payload := make([]byte, dataLen)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("pktline: reading %d byte payload: %w", dataLen, err)
	}

	return Frame{Kind: Data, Payload: payload}, nil
}

// All decodes frames until Flush (inclusive) or EOF, returning them in
// order. It does not recurse into nested sections; callers that need
// section-aware parsing (delimiters separating acknowledgments/shallow-
// info/packfile) should call Next directly.
func (d *Decoder) All() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		if f.Kind == Flush {
			return frames, nil
		}
	}
}

func parseLength(b []byte) (int, error) {
	n, err := hex.DecodeString(string(b))
	if err != nil {
		return 0, fmt.Errorf("pktline: invalid hex length %q: %w", b, err)
	}
	// hex.DecodeString wants an even-length string; we already know b is 4
	// hex digits, decoded to 2 bytes, big-endian.
	return int(n[0])<<8 | int(n[1]), nil
}
