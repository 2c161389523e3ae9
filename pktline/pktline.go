// Package pktline implements git's length-prefixed wire framing (C2):
// encode/decode of length-prefixed frames, including the flush/delimiter/
// response-end sentinels and sideband-channel demultiplexing.
//
// Grounded on protocol/pack.go: same length-field sizing, the same sentinel
// values ("0000"/"0001"/"0002"), and the same split between a lightweight
// line type and pre-built special packets. The git-server status-line
// parsing half of pack.go (ERR/ng/unpack dispatch) is not part of this
// package — that's pack-negotiation semantics, not pkt-line framing, and
// lives in package negotiate instead (see negotiate/response.go).
package pktline

import (
	"errors"
	"fmt"
)

const (
	// LengthSize is the width of the hex length prefix.
	LengthSize = 4
	// MaxData is the largest payload a single frame may carry.
	MaxData = 65516
	// MaxFrame is LengthSize + MaxData.
	MaxFrame = MaxData + LengthSize
)

// ErrDataTooLarge describes a payload larger than MaxData. The encoders in
// this package split such payloads across frames and do not return it.
var ErrDataTooLarge = errors.New("pktline: data exceeds maximum frame size")

// Kind classifies a decoded Frame.
type Kind int

const (
	// Data carries payload bytes.
	Data Kind = iota
	// Flush is the "0000" sentinel: end of a message.
	Flush
	// Delim is the "0001" sentinel: protocol-v2 section separator.
	Delim
	// ResponseEnd is the "0002" sentinel: end of a protocol-v2 response.
	ResponseEnd
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case Flush:
		return "flush"
	case Delim:
		return "delim"
	case ResponseEnd:
		return "response-end"
	default:
		return fmt.Sprintf("pktline.Kind(%d)", int(k))
	}
}

// Frame is one decoded pkt-line unit.
type Frame struct {
	Kind    Kind
	Payload []byte // only meaningful when Kind == Data
}

// sentinel raw wire bytes for the three special frame lengths.
const (
	flushWire       = "0000"
	delimWire       = "0001"
	responseEndWire = "0002"
)

// EncodeData encodes payload as a single length-prefixed data frame. If
// payload exceeds MaxData, it is split across multiple frames, each
// returned concatenated (callers that need the frame boundaries preserved
// should call EncodeDataFrames instead).
func EncodeData(payload []byte) ([]byte, error) {
	frames, err := EncodeDataFrames(payload)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return out, nil
}

// EncodeDataFrames splits payload into MaxData-sized chunks and encodes
// each as its own length-prefixed frame. An empty payload still yields one
// zero-length data frame ("0004"), so Format/decode round-trip is the
// identity on a Frame{Kind: Data} with no payload bytes.
func EncodeDataFrames(payload []byte) ([][]byte, error) {
	var frames [][]byte
	for first := true; first || len(payload) > 0; first = false {
		chunk := payload
		if len(chunk) > MaxData {
			chunk = chunk[:MaxData]
		}
		frame := make([]byte, 0, LengthSize+len(chunk))
		frame = append(frame, []byte(fmt.Sprintf("%04x", len(chunk)+LengthSize))...)
		frame = append(frame, chunk...)
		frames = append(frames, frame)
		payload = payload[len(chunk):]
	}
	return frames, nil
}

// EncodeFlush, EncodeDelim, and EncodeResponseEnd return the wire bytes for
// their respective sentinel frames.
func EncodeFlush() []byte       { return []byte(flushWire) }
func EncodeDelim() []byte       { return []byte(delimWire) }
func EncodeResponseEnd() []byte { return []byte(responseEndWire) }

// Format concatenates the wire encoding of frames in order. Data payloads
// larger than MaxData are transparently split.
func Format(frames ...Frame) ([]byte, error) {
	var out []byte
	for _, f := range frames {
		switch f.Kind {
		case Data:
			enc, err := EncodeData(f.Payload)
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		case Flush:
			out = append(out, EncodeFlush()...)
		case Delim:
			out = append(out, EncodeDelim()...)
		case ResponseEnd:
			out = append(out, EncodeResponseEnd()...)
		default:
			return nil, fmt.Errorf("pktline: unknown frame kind %v", f.Kind)
		}
	}
	return out, nil
}
