package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/zsiec/airwave/internal/buffer"
	"github.com/zsiec/airwave/internal/crypto"
	"github.com/zsiec/airwave/internal/media"
)

// xorCipher flips every byte, standing in for the injected ciphers so
// tests can tell decrypted regions from passthrough regions.
type xorCipher struct{}

func (xorCipher) Decrypt(buf []byte) {
	for i := range buf {
		buf[i] ^= 0xFF
	}
}

type audioCollector struct {
	ch chan *media.AudioPacket
}

func (c *audioCollector) OnData(p *media.AudioPacket) { c.ch <- p }

func waitAudio(t *testing.T, ch chan *media.AudioPacket) *media.AudioPacket {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio packet")
		return nil
	}
}

// bufferedFrame assembles one buffered-audio wire frame: self-inclusive
// big-endian length, RTP bytes, tag, nonce suffix.
func bufferedFrame(rtp, tag, nonceSuffix []byte) []byte {
	frame := make([]byte, 0, 2+len(rtp)+bufferedTrailerLen)
	frame = binary.BigEndian.AppendUint16(frame, uint16(2+len(rtp)+bufferedTrailerLen))
	frame = append(frame, rtp...)
	frame = append(frame, tag...)
	frame = append(frame, nonceSuffix...)
	return frame
}

// sealRTP encrypts the payload region of an RTP packet with the
// buffered-audio AEAD, returning the wire RTP bytes and tag.
func sealRTP(t *testing.T, key, header, payload, nonceSuffix []byte) (rtp, tag []byte) {
	t.Helper()
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		t.Fatal(err)
	}
	var nonce [crypto.NonceLen]byte
	copy(nonce[4:], nonceSuffix)
	aad := header[crypto.AADOffset : crypto.AADOffset+crypto.AADLen]

	sealed := aead.Seal(nil, nonce[:], payload, aad)
	rtp = append(append([]byte(nil), header...), sealed[:len(payload)]...)
	return rtp, sealed[len(payload):]
}

func TestBufferedAudio_AuthFailureDropsPacketOnly(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, chacha20poly1305.KeySize)
	cipher, err := crypto.NewBufferedCipher(key)
	if err != nil {
		t.Fatal(err)
	}

	header := []byte{0x80, 0x60, 0, 1, 0xAA, 0xBB, 0xCC, 0xDD, 0, 0, 0, 7}
	payloads := [][]byte{
		[]byte("first good packet"),
		[]byte("tampered packet"),
		[]byte("second good packet"),
	}

	var frames [][]byte
	for i, payload := range payloads {
		suffix := []byte{0, 0, 0, 0, 0, 0, 0, byte(i)}
		rtp, tag := sealRTP(t, key, header, payload, suffix)
		if i == 1 {
			tag[0] ^= 0xFF
		}
		frames = append(frames, bufferedFrame(rtp, tag, suffix))
	}

	client, server := net.Pipe()
	go func() {
		defer client.Close()
		for _, frame := range frames {
			client.Write(frame)
		}
	}()

	pool := buffer.NewPool(4096)
	sink := &audioCollector{ch: make(chan *media.AudioPacket, 8)}
	p := NewBufferedAudio(server, cipher, pool, sink, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range [][]byte{payloads[0], payloads[2]} {
		pkt := waitAudio(t, sink.ch)
		if !bytes.Equal(pkt.Payload(), want) {
			t.Errorf("payload = %q, want %q", pkt.Payload(), want)
		}
		if !bytes.Equal(pkt.RTP.Bytes()[:media.AudioHeaderLen], header) {
			t.Error("header bytes modified")
		}
		pkt.Release()
	}
	select {
	case <-sink.ch:
		t.Fatal("tampered packet was delivered")
	default:
	}
	if got := p.Stats().Drops; got != 1 {
		t.Errorf("drops = %d, want 1", got)
	}
	if got := pool.Stats().InUseBytes; got != 0 {
		t.Errorf("pool in-use = %d after run, want 0", got)
	}
}

func TestBufferedAudio_MalformedFramingIsFatal(t *testing.T) {
	for _, frameLen := range []uint16{0, 1, 2, 10, 37} {
		client, server := net.Pipe()
		go func() {
			var hdr [2]byte
			binary.BigEndian.PutUint16(hdr[:], frameLen)
			client.Write(hdr[:])
		}()

		sink := &audioCollector{ch: make(chan *media.AudioPacket, 1)}
		p := NewBufferedAudio(server, rejectCipher{}, buffer.NewPool(1024), sink, nil)

		err := p.Run(context.Background())
		if !errors.Is(err, ErrMalformedStream) {
			t.Errorf("len=%d: Run = %v, want ErrMalformedStream", frameLen, err)
		}
		select {
		case <-sink.ch:
			t.Errorf("len=%d: partial delivery from malformed frame", frameLen)
		default:
		}
		client.Close()
	}
}

func TestBufferedAudio_TruncationIsFatal(t *testing.T) {
	rtp := make([]byte, media.AudioHeaderLen+4)
	trailer := make([]byte, bufferedTrailerLen)
	frame := bufferedFrame(rtp, trailer[:crypto.TagLen], trailer[crypto.TagLen:])

	cases := map[string][]byte{
		"mid-body":  frame[:2+media.AudioHeaderLen],
		"mid-tag":   frame[:2+len(rtp)+7],
		"mid-nonce": frame[:2+len(rtp)+crypto.TagLen+3],
	}
	for name, wire := range cases {
		client, server := net.Pipe()
		go func() {
			defer client.Close()
			client.Write(wire)
		}()

		pool := buffer.NewPool(1024)
		sink := &audioCollector{ch: make(chan *media.AudioPacket, 1)}
		p := NewBufferedAudio(server, rejectCipher{}, pool, sink, nil)

		if err := p.Run(context.Background()); err == nil {
			t.Errorf("%s: truncated frame must be fatal", name)
		}
		select {
		case <-sink.ch:
			t.Errorf("%s: partial delivery from truncated frame", name)
		default:
		}
		if got := pool.Stats().InUseBytes; got != 0 {
			t.Errorf("%s: pool in-use = %d after run, want 0", name, got)
		}
	}
}

// rejectCipher fails every Open, for failure-policy tests.
type rejectCipher struct{}

func (rejectCipher) Open([crypto.NonceLen]byte, [crypto.AADLen]byte, [crypto.TagLen]byte, []byte) error {
	return crypto.ErrAuthFailure
}

func TestBufferedAudio_SustainedAuthFailureClosesStream(t *testing.T) {
	rtp := make([]byte, media.AudioHeaderLen+4)
	trailer := make([]byte, bufferedTrailerLen)

	client, server := net.Pipe()
	go func() {
		for i := 0; i < maxConsecutiveAuthFailures; i++ {
			client.Write(bufferedFrame(rtp, trailer[:crypto.TagLen], trailer[crypto.TagLen:]))
		}
	}()

	sink := &audioCollector{ch: make(chan *media.AudioPacket, 1)}
	p := NewBufferedAudio(server, rejectCipher{}, buffer.NewPool(1024), sink, nil)

	if err := p.Run(context.Background()); !errors.Is(err, ErrAuthFailureLimit) {
		t.Errorf("Run = %v, want ErrAuthFailureLimit", err)
	}
	client.Close()
}

func TestBufferedAudio_CancelStopsLoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewBufferedAudio(server, rejectCipher{}, buffer.NewPool(1024), &audioCollector{ch: make(chan *media.AudioPacket)}, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestRealtimeAudio_DecryptsAndDrops(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	sender, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	pool := buffer.NewPool(4096)
	sink := &audioCollector{ch: make(chan *media.AudioPacket, 4)}
	p := NewRealtimeAudio(conn, xorCipher{}, pool, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	header := []byte{0x80, 0x60, 0, 1, 0, 0, 0, 0, 0, 0, 0, 9}
	payload := []byte{0x0F, 0xF0, 0x55}

	// A runt datagram is dropped, then a valid packet is delivered.
	if _, err := sender.WriteTo([]byte{1, 2, 3}, conn.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	if _, err := sender.WriteTo(append(append([]byte(nil), header...), payload...), conn.LocalAddr()); err != nil {
		t.Fatal(err)
	}

	pkt := waitAudio(t, sink.ch)
	if !bytes.Equal(pkt.RTP.Bytes()[:media.AudioHeaderLen], header) {
		t.Error("header region modified by realtime decrypt")
	}
	want := []byte{0xF0, 0x0F, 0xAA}
	if !bytes.Equal(pkt.Payload(), want) {
		t.Errorf("payload = %x, want %x", pkt.Payload(), want)
	}
	pkt.Release()

	if got := p.Stats().Drops; got != 1 {
		t.Errorf("drops = %d, want 1", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
