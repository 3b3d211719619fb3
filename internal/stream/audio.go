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

// datagramBufSize bounds a single UDP receive. Realtime audio packets
// are far smaller; 16K leaves headroom for jumbo senders.
const datagramBufSize = 16 * 1024

// bufferedTrailerLen is the per-packet authentication trailer on the
// buffered audio wire: 16-byte tag + 8-byte nonce suffix.
const bufferedTrailerLen = 24

// maxConsecutiveAuthFailures closes a buffered audio stream once this
// many packets in a row fail to authenticate. A lone bad tag is a
// dropped packet; an unbroken run of them is a key mismatch.
const maxConsecutiveAuthFailures = 32

// RealtimeAudio reads one RTP packet per UDP datagram, decrypts the
// payload in place, and delivers it to the sink in arrival order.
type RealtimeAudio struct {
	log    *slog.Logger
	conn   net.PacketConn
	cipher crypto.RealtimeCipher
	pool   *buffer.Pool
	sink   media.AudioSink
	stats  *Stats
}

// NewRealtimeAudio creates a realtime audio processor bound to conn.
// If log is nil, slog.Default() is used.
func NewRealtimeAudio(conn net.PacketConn, cipher crypto.RealtimeCipher, pool *buffer.Pool, sink media.AudioSink, log *slog.Logger) *RealtimeAudio {
	if log == nil {
		log = slog.Default()
	}
	return &RealtimeAudio{
		log:    log.With("component", "audio-realtime"),
		conn:   conn,
		cipher: cipher,
		pool:   pool,
		sink:   sink,
		stats:  newStats(),
	}
}

// Stats returns a snapshot of the processor's counters.
func (p *RealtimeAudio) Stats() StatsSnapshot { return p.stats.Snapshot() }

// Run loops until the socket fails or ctx is cancelled. Cancellation
// closes the socket so the blocking read aborts; a runt datagram is
// logged and dropped, since UDP has no framing to resynchronize.
func (p *RealtimeAudio) Run(ctx context.Context) error {
	defer p.conn.Close()
	go func() {
		<-ctx.Done()
		p.conn.Close()
	}()

	buf := make([]byte, datagramBufSize)
	for {
		n, _, err := p.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime audio read: %w", err)
		}
		if n < media.AudioHeaderLen {
			p.log.Warn("dropping runt datagram", "len", n)
			p.stats.drop()
			continue
		}

		rtp := p.pool.Allocate(n)
		copy(rtp.Bytes(), buf[:n])
		p.cipher.Decrypt(rtp.Bytes()[media.AudioHeaderLen:])

		p.stats.record(n)
		p.sink.OnData(&media.AudioPacket{RTP: rtp})
	}
}

// BufferedAudio reads length-prefixed, authenticated audio frames from a
// TCP connection. Framing faults are fatal; a packet that fails to
// authenticate is dropped and the loop continues.
type BufferedAudio struct {
	log    *slog.Logger
	conn   net.Conn
	cipher crypto.BufferedCipher
	pool   *buffer.Pool
	sink   media.AudioSink
	stats  *Stats
}

// NewBufferedAudio creates a buffered audio processor bound to conn.
// If log is nil, slog.Default() is used.
func NewBufferedAudio(conn net.Conn, cipher crypto.BufferedCipher, pool *buffer.Pool, sink media.AudioSink, log *slog.Logger) *BufferedAudio {
	if log == nil {
		log = slog.Default()
	}
	return &BufferedAudio{
		log:    log.With("component", "audio-buffered"),
		conn:   conn,
		cipher: cipher,
		pool:   pool,
		sink:   sink,
		stats:  newStats(),
	}
}

// Stats returns a snapshot of the processor's counters.
func (p *BufferedAudio) Stats() StatsSnapshot { return p.stats.Snapshot() }

// Run loops until the connection fails, framing breaks, the
// authentication failure threshold is hit, or ctx is cancelled. A clean
// close at a frame boundary returns nil.
func (p *BufferedAudio) Run(ctx context.Context) error {
	defer p.conn.Close()
	go func() {
		<-ctx.Done()
		p.conn.Close()
	}()

	var (
		hdr       [2]byte
		tag       [crypto.TagLen]byte
		nonce     [crypto.NonceLen]byte
		aad       [crypto.AADLen]byte
		authFails int
	)
	for {
		if _, err := io.ReadFull(p.conn, hdr[:]); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("buffered audio length: %w", err)
		}

		// The length field includes its own two bytes.
		pktLen := int(binary.BigEndian.Uint16(hdr[:]))
		if pktLen >= 2 {
			pktLen -= 2
		} else {
			pktLen = 0
		}
		if pktLen < media.AudioHeaderLen+bufferedTrailerLen {
			return fmt.Errorf("%w: frame of %d bytes", ErrMalformedStream, pktLen)
		}

		rtp := p.pool.Allocate(pktLen - bufferedTrailerLen)
		if err := p.readTrailer(rtp, tag[:], nonce[:]); err != nil {
			rtp.Release()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		copy(aad[:], rtp.Bytes()[crypto.AADOffset:crypto.AADOffset+crypto.AADLen])

		if err := p.cipher.Open(nonce, aad, tag, rtp.Bytes()[media.AudioHeaderLen:]); err != nil {
			p.log.Warn("dropping packet that failed authentication",
				"len", rtp.Len(), "nonce", nonce[4:], "consecutive", authFails+1)
			p.stats.drop()
			rtp.Release()
			authFails++
			if authFails >= maxConsecutiveAuthFailures {
				return fmt.Errorf("%w (%d)", ErrAuthFailureLimit, authFails)
			}
			continue
		}
		authFails = 0

		p.stats.record(rtp.Len())
		p.sink.OnData(&media.AudioPacket{RTP: rtp})
	}
}

// readTrailer fills the RTP buffer, then the tag and the low 8 bytes of
// the nonce from the wire. The nonce's high 4 bytes stay zero.
func (p *BufferedAudio) readTrailer(rtp *buffer.Slice, tag, nonce []byte) error {
	if _, err := io.ReadFull(p.conn, rtp.Bytes()); err != nil {
		return fmt.Errorf("buffered audio body: %w", err)
	}
	if _, err := io.ReadFull(p.conn, tag); err != nil {
		return fmt.Errorf("buffered audio tag: %w", err)
	}
	if _, err := io.ReadFull(p.conn, nonce[4:]); err != nil {
		return fmt.Errorf("buffered audio nonce: %w", err)
	}
	return nil
}
