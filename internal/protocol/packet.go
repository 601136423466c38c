// Package protocol implements the TCP framing shared by the Login and Auth
// services: a length-prefixed packet carrying a fixed 12-byte header, plus
// the message header used inside that payload once a session has moved
// past the handshake.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/udisondev/frpg2go/internal/constants"
)

// Cipher is the symmetric transform applied to a packet's header+payload
// once a TCP session has moved past its RSA handshake message. *cipher.CWC
// satisfies it.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(frame []byte) ([]byte, error)
}

// Header is the fixed 12-byte packet header that precedes every payload on
// the Login and Auth TCP channels.
type Header struct {
	SendCounter       uint16
	PayloadLength     uint32
	PayloadLengthEcho uint16 // repeats PayloadLength's low 16 bits; both must agree
}

// Encode writes h into a 12-byte big-endian header.
func (h Header) Encode() [constants.TCPPacketHeaderSize]byte {
	var buf [constants.TCPPacketHeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.SendCounter)
	// bytes 2:4 reserved
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLength)
	// bytes 8:10 reserved
	binary.BigEndian.PutUint16(buf[10:12], h.PayloadLengthEcho)
	return buf
}

// DecodeHeader parses a 12-byte header, validating that the two payload
// length fields agree.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < constants.TCPPacketHeaderSize {
		return Header{}, fmt.Errorf("packet header too short: %d bytes", len(buf))
	}

	h := Header{
		SendCounter:       binary.BigEndian.Uint16(buf[0:2]),
		PayloadLength:     binary.BigEndian.Uint32(buf[4:8]),
		PayloadLengthEcho: binary.BigEndian.Uint16(buf[10:12]),
	}

	if uint32(h.PayloadLengthEcho) != h.PayloadLength&0xFFFF {
		return Header{}, fmt.Errorf("packet header length mismatch: full=%d echo=%d", h.PayloadLength, h.PayloadLengthEcho)
	}
	return h, nil
}

// WriteFrame encrypts header+payload as one block with enc and writes the
// result behind a 2-byte big-endian length prefix.
func WriteFrame(w io.Writer, enc Cipher, sendCounter uint32, payload []byte) error {
	header := Header{
		SendCounter:       uint16(sendCounter),
		PayloadLength:     uint32(len(payload)),
		PayloadLengthEcho: uint16(len(payload)),
	}
	headerBytes := header.Encode()

	plain := make([]byte, 0, len(headerBytes)+len(payload))
	plain = append(plain, headerBytes[:]...)
	plain = append(plain, payload...)

	frame, err := enc.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypting packet: %w", err)
	}
	if len(frame) > constants.MaxTCPPacketLength-constants.TCPLengthPrefixSize {
		return fmt.Errorf("encrypted packet %d bytes exceeds maximum", len(frame))
	}

	var lengthPrefix [constants.TCPLengthPrefixSize]byte
	binary.BigEndian.PutUint16(lengthPrefix[:], uint16(len(frame)))

	if _, err := w.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("writing length prefix: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing packet body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r, decrypts it with enc,
// validates its header, and returns the header plus the payload bytes.
func ReadFrame(r io.Reader, enc Cipher) (Header, []byte, error) {
	var lengthPrefix [constants.TCPLengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthPrefix[:]); err != nil {
		return Header{}, nil, fmt.Errorf("reading length prefix: %w", err)
	}

	frameLen := int(binary.BigEndian.Uint16(lengthPrefix[:]))
	if frameLen < constants.TCPPacketHeaderSize {
		return Header{}, nil, fmt.Errorf("frame length %d smaller than header", frameLen)
	}
	if frameLen > constants.MaxTCPPacketLength {
		return Header{}, nil, fmt.Errorf("frame length %d exceeds maximum", frameLen)
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(r, frame); err != nil {
		return Header{}, nil, fmt.Errorf("reading frame body: %w", err)
	}

	plain, err := enc.Decrypt(frame)
	if err != nil {
		return Header{}, nil, fmt.Errorf("decrypting frame: %w", err)
	}
	if len(plain) < constants.TCPPacketHeaderSize {
		return Header{}, nil, fmt.Errorf("decrypted frame too short: %d bytes", len(plain))
	}

	header, err := DecodeHeader(plain)
	if err != nil {
		return Header{}, nil, err
	}

	payload := plain[constants.TCPPacketHeaderSize:]
	if uint32(len(payload)) != header.PayloadLength {
		return Header{}, nil, fmt.Errorf("payload length %d does not match header %d", len(payload), header.PayloadLength)
	}

	return header, payload, nil
}

// identityCipher lets the RSA-ciphered handshake message reuse WriteFrame's
// framing logic: the caller RSA-encrypts the payload itself before handing
// it to WriteFrame, so no further symmetric transform is wanted here.
type identityCipher struct{}

func (identityCipher) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (identityCipher) Decrypt(p []byte) ([]byte, error) { return p, nil }

// NoCipher is the identity Cipher, used for the handshake message whose
// payload is already RSA-ciphered by the caller.
var NoCipher Cipher = identityCipher{}
