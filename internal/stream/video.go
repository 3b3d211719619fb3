package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/zsiec/airwave/internal/buffer"
	"github.com/zsiec/airwave/internal/crypto"
	"github.com/zsiec/airwave/internal/media"
)

// videoHeaderLen is the fixed video frame header: u32 payload length,
// u16 kind, u16 reserved, u64 timestamp, then 112 reserved bytes, all
// little-endian.
const videoHeaderLen = 4 + 2 + 2 + 8 + 112

// maxVideoPayload bounds the wire payload length. The length field is an
// unsigned 32-bit value; anything near that range is a corrupt or hostile
// header, not a frame, and must not reach the allocator.
const maxVideoPayload = 16 << 20

// Video reads fixed-plus-variable framed video packets from a TCP
// connection, decrypting only payload-kind packets; codec configuration
// (AvcC) and unrecognized kinds pass through untouched.
type Video struct {
	log    *slog.Logger
	conn   net.Conn
	cipher crypto.VideoCipher
	pool   *buffer.Pool
	sink   media.VideoSink
	stats  *Stats
}

// NewVideo creates a video processor bound to conn. If log is nil,
// slog.Default() is used.
func NewVideo(conn net.Conn, cipher crypto.VideoCipher, pool *buffer.Pool, sink media.VideoSink, log *slog.Logger) *Video {
	if log == nil {
		log = slog.Default()
	}
	return &Video{
		log:    log.With("component", "video"),
		conn:   conn,
		cipher: cipher,
		pool:   pool,
		sink:   sink,
		stats:  newStats(),
	}
}

// Stats returns a snapshot of the processor's counters.
func (p *Video) Stats() StatsSnapshot { return p.stats.Snapshot() }

// Run loops until the connection fails or ctx is cancelled. Any short
// read inside a frame is fatal; a clean close at a frame boundary
// returns nil.
func (p *Video) Run(ctx context.Context) error {
	defer p.conn.Close()
	go func() {
		<-ctx.Done()
		p.conn.Close()
	}()

	hdr := make([]byte, videoHeaderLen)
	for {
		if _, err := io.ReadFull(p.conn, hdr); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("video header: %w", err)
		}

		payloadLen := binary.LittleEndian.Uint32(hdr[0:4])
		kindCode := binary.LittleEndian.Uint16(hdr[4:6])
		timestamp := binary.LittleEndian.Uint64(hdr[8:16])
		kind := media.KindFromWire(kindCode)

		if payloadLen > maxVideoPayload {
			return fmt.Errorf("%w: video payload of %d bytes", ErrMalformedStream, payloadLen)
		}

		payload := p.pool.Allocate(int(payloadLen))
		if _, err := io.ReadFull(p.conn, payload.Bytes()); err != nil {
			payload.Release()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("video payload: %w", err)
		}

		if kind == media.KindPayload {
			p.cipher.Decrypt(payload.Bytes())
		}

		p.stats.record(videoHeaderLen + int(payloadLen))
		p.sink.OnData(&media.VideoPacket{
			Kind:      kind,
			KindCode:  kindCode,
			Timestamp: timestamp,
			Payload:   payload,
		})
	}
}
