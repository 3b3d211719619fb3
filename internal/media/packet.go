// Package media defines the packet types that flow from the per-stream
// processors to the playback sinks, and the sink interfaces the session
// layer injects at stream setup.
package media

import "github.com/zsiec/airwave/internal/buffer"

// AudioHeaderLen is the RTP header length shared by the realtime and
// buffered audio framings. Bytes past the header are the encrypted
// payload region.
const AudioHeaderLen = 12

// AudioPacket is one RTP-shaped audio packet borrowed from the buffer
// pool. The receiving sink owns the slice and must release it when done.
type AudioPacket struct {
	RTP *buffer.Slice
}

// Payload returns the packet bytes after the RTP header.
func (p *AudioPacket) Payload() []byte {
	return p.RTP.Bytes()[AudioHeaderLen:]
}

// Release drops the packet's hold on its pool slice.
func (p *AudioPacket) Release() { p.RTP.Release() }

// PacketKind classifies a video packet by its wire kind code.
type PacketKind int

const (
	// KindAvcC carries codec configuration (not encrypted media).
	KindAvcC PacketKind = iota
	// KindPayload carries encrypted media and is decrypted before delivery.
	KindPayload
	// KindOther is any unrecognized kind code, passed through untouched.
	KindOther
)

// KindFromWire maps a wire kind code to its PacketKind.
func KindFromWire(code uint16) PacketKind {
	switch code {
	case 1:
		return KindAvcC
	case 0, 4096:
		return KindPayload
	default:
		return KindOther
	}
}

func (k PacketKind) String() string {
	switch k {
	case KindAvcC:
		return "avcc"
	case KindPayload:
		return "payload"
	default:
		return "other"
	}
}

// VideoPacket is one framed video packet. KindCode preserves the raw
// wire value for KindOther packets. The sink owns Payload until released.
type VideoPacket struct {
	Kind      PacketKind
	KindCode  uint16
	Timestamp uint64
	Payload   *buffer.Slice
}

// Release drops the packet's hold on its pool slice.
func (p *VideoPacket) Release() { p.Payload.Release() }

// AudioSink consumes decoded audio packets for one stream. OnData is
// synchronous; the sink takes ownership of the packet's slice and
// releases it when finished.
type AudioSink interface {
	OnData(*AudioPacket)
}

// VideoSink consumes decoded video packets for one stream.
type VideoSink interface {
	OnData(*VideoPacket)
}
