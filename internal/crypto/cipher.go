// Package crypto defines the per-stream cipher contracts the packet
// processors invoke, together with the nonce/AAD layout the wire framing
// dictates, and provides the concrete ciphers keyed from SETUP material.
//
// Key state is established once per stream from the negotiated
// parameters and is immutable afterwards; each cipher instance belongs
// to a single processor goroutine and is not safe for concurrent use.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Wire layout of the buffered-audio authentication trailer. The nonce is
// 4 zero bytes followed by 8 bytes read from the wire; the AAD is the 8
// bytes at AADOffset inside the packet's own RTP header.
const (
	NonceLen  = 12
	TagLen    = 16
	AADLen    = 8
	AADOffset = 4
)

// ErrAuthFailure indicates an AEAD tag mismatch. Whether it is fatal is
// the caller's policy, not the cipher's.
var ErrAuthFailure = errors.New("crypto: packet authentication failed")

// RealtimeCipher decrypts realtime audio payloads in place. No
// authentication is performed, so decryption cannot fail.
type RealtimeCipher interface {
	Decrypt(buf []byte)
}

// BufferedCipher performs authenticated in-place decryption of buffered
// audio payloads. Open reports ErrAuthFailure when the tag does not
// verify; buf is left in an unspecified state in that case.
type BufferedCipher interface {
	Open(nonce [NonceLen]byte, aad [AADLen]byte, tag [TagLen]byte, buf []byte) error
}

// VideoCipher decrypts video payload packets in place.
type VideoCipher interface {
	Decrypt(buf []byte)
}

// cbcCipher decrypts whole AES blocks with the session IV, leaving any
// trailing partial block in the clear, as the realtime audio framing
// requires. The IV is reset for every packet.
type cbcCipher struct {
	block cipher.Block
	iv    []byte
}

// NewRealtimeCipher creates the realtime audio cipher from the session
// key and initialization vector carried by the SETUP sender info.
func NewRealtimeCipher(key, iv []byte) (RealtimeCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: realtime key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("crypto: realtime iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &cbcCipher{block: block, iv: append([]byte(nil), iv...)}, nil
}

func (c *cbcCipher) Decrypt(buf []byte) {
	n := len(buf) &^ (aes.BlockSize - 1)
	if n == 0 {
		return
	}
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(buf[:n], buf[:n])
}

// aeadCipher wraps ChaCha20-Poly1305 keyed from the per-stream shared
// key (shk) of a buffered audio SETUP.
type aeadCipher struct {
	aead    cipher.AEAD
	scratch []byte
}

// NewBufferedCipher creates the buffered audio AEAD from the per-stream
// shared key.
func NewBufferedCipher(sharedKey []byte) (BufferedCipher, error) {
	aead, err := chacha20poly1305.New(sharedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: buffered shared key: %w", err)
	}
	return &aeadCipher{aead: aead}, nil
}

func (c *aeadCipher) Open(nonce [NonceLen]byte, aad [AADLen]byte, tag [TagLen]byte, buf []byte) error {
	c.scratch = append(c.scratch[:0], buf...)
	c.scratch = append(c.scratch, tag[:]...)
	if _, err := c.aead.Open(buf[:0], nonce[:], c.scratch, aad[:]); err != nil {
		return ErrAuthFailure
	}
	return nil
}

// ctrCipher runs a single AES-CTR keystream across all payload packets
// of a video stream, as the mirroring framing requires.
type ctrCipher struct {
	stream cipher.Stream
}

// NewVideoCipher creates the video payload cipher from the stream key
// and initial counter block.
func NewVideoCipher(key, iv []byte) (VideoCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: video key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("crypto: video iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &ctrCipher{stream: cipher.NewCTR(block, iv)}, nil
}

func (c *ctrCipher) Decrypt(buf []byte) {
	c.stream.XORKeyStream(buf, buf)
}
