package pktline

import (
	"fmt"
)

// Sideband channel tags, per protocol-v2's packfile section.
const (
	ChannelPack     = 1
	ChannelProgress = 2
	ChannelFatal    = 3
)

// ProgressSink receives channel-2 progress text.
type ProgressSink interface {
	Progress(text string)
}

// NopProgressSink discards progress messages.
type NopProgressSink struct{}

func (NopProgressSink) Progress(string) {}

// FatalError is returned when a channel-3 sideband frame is seen; this is
// always fatal per the protocol-v2 sideband contract.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pktline: fatal sideband message: %s", e.Message)
}

// Demux splits a sideband-multiplexed Data payload into its channel and
// remaining bytes. Payloads with no leading channel byte are treated as
// plain (unmultiplexed) pack data, for callers that haven't negotiated
// side-band-64k.
func Demux(payload []byte) (channel byte, data []byte) {
	if len(payload) == 0 {
		return ChannelPack, payload
	}
	switch payload[0] {
	case ChannelPack, ChannelProgress, ChannelFatal:
		return payload[0], payload[1:]
	default:
		return ChannelPack, payload
	}
}

// RouteSideband applies Demux to payload, writing pack bytes via onPack,
// forwarding progress text to sink, and returning a *FatalError if the
// frame was on channel 3.
func RouteSideband(payload []byte, onPack func([]byte) error, sink ProgressSink) error {
	channel, data := Demux(payload)
	switch channel {
	case ChannelFatal:
		return &FatalError{Message: string(data)}
	case ChannelProgress:
		if sink != nil {
			sink.Progress(string(data))
		}
		return nil
	default:
		return onPack(data)
	}
}
