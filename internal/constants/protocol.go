// Package constants collects the wire-level magic numbers, sizes and
// timeouts that every layer of the transport stack (TCP framing, RUDP,
// fragment, message, ciphers) needs to agree on.
package constants

import "time"

// TCP framed packet (Login/Auth services).
const (
	// TCPLengthPrefixSize is the big-endian length prefix in front of every framed TCP packet.
	TCPLengthPrefixSize = 2

	// TCPPacketHeaderSize is the fixed header following the length prefix.
	TCPPacketHeaderSize = 12

	// MaxTCPPacketLength bounds a single framed TCP packet (header + payload).
	MaxTCPPacketLength = 1 << 16

	// MessageHeaderSize is the header inside a TCP packet's payload.
	MessageHeaderSize = 12

	// MessageHeaderSizeField is the constant value of the header's own size field.
	MessageHeaderSizeField = 12

	// ResponseSubHeaderSize follows MessageHeaderSize when the message is a reply.
	ResponseSubHeaderSize = 16
)

// RSA key material.
const (
	// RSAKeyBits is the server keypair size for the Login/Auth handshake (spec requires 2048-bit).
	RSAKeyBits = 2048

	// RSAPublicExponent is the RSA public exponent (F4).
	RSAPublicExponent = 65537
)

// CWC-family AEAD cipher framing.
const (
	// CWCIVSize is the random IV prefix on every CWC-framed message.
	CWCIVSize = 11

	// CWCTagSize is the authentication tag size.
	CWCTagSize = 16

	// CWCUDPAuthTokenSize is the auth-token field in the client->server UDP header.
	CWCUDPAuthTokenSize = 8

	// CWCUDPPacketTypeSize is the packet-type byte in the client->server UDP header.
	CWCUDPPacketTypeSize = 1

	// GameSessionKeySize is the combined client-half + server-half game session key.
	GameSessionKeySize = 16

	// GameSessionKeyHalfSize is the size of each half of the game session key.
	GameSessionKeyHalfSize = 8
)

// RUDP (§4.5).
const (
	// RUDPMagic is the fixed marker at offset 0 of every RUDP packet header.
	RUDPMagic = 0x02F5

	// RUDPHeaderSize is the fixed RUDP header size in bytes.
	RUDPHeaderSize = 7

	// RUDPReservedByte is the constant value of the header's trailing reserved byte.
	RUDPReservedByte = 0xFF

	// MaxSequence is one past the largest representable 12-bit sequence number.
	MaxSequence = 1 << 12

	// MaxInFlight caps unacknowledged sequenced packets per session.
	MaxInFlight = 10

	// RetransmitInterval is how long an unacked packet waits before resend.
	RetransmitInterval = 500 * time.Millisecond

	// MinAckResendInterval throttles duplicate-triggered ACK resends.
	MinAckResendInterval = 100 * time.Millisecond

	// CloseGraceTimeout bounds how long a locally-initiated close waits for the send queue to drain.
	CloseGraceTimeout = 5 * time.Second

	// DefaultSessionIdleTimeout destroys a session with no received traffic for this long.
	DefaultSessionIdleTimeout = 30 * time.Second

	// DefaultHeartbeatInterval is how long the server waits with no received packet before sending HBT.
	DefaultHeartbeatInterval = 10 * time.Second

	// DefaultAuthTokenTTL bounds how long an Auth-issued token may sit unclaimed by Game.
	DefaultAuthTokenTTL = 20 * time.Second

	// MaxSendQueueBytes is the outbound-saturation ceiling per session (spec §7).
	MaxSendQueueBytes = 512 * 1024
)

// SYNPayload is the fixed 8-byte SYN opcode payload (purpose unknown upstream, spec §9).
var SYNPayload = [8]byte{0x12, 0x10, 0x20, 0x20, 0x00, 0x00, 0xA0, 0x00}

// SYNACKPayload is the fixed 8-byte SYN_ACK opcode payload.
var SYNACKPayload = [8]byte{0x12, 0x10, 0x20, 0x20, 0x00, 0x01, 0x00, 0x00}

// Fragment stream (§4.6).
const (
	// MaxFragmentLength is the maximum bytes (header included) carried by one RUDP packet's fragment.
	MaxFragmentLength = 1024

	// FragmentHeaderSize is the fixed fragment header size.
	FragmentHeaderSize = 12

	// FragmentOriginalSizeFieldSize is the extra field fragment 0 carries when compressed.
	FragmentOriginalSizeFieldSize = 4

	// MinCompressSize is the threshold at or above which a payload is deflated before fragmenting.
	MinCompressSize = 256
)

// Auth->Game handoff struct (§6).
const (
	// GameServerInfoSize is the fixed size of the Auth->Game handoff struct.
	GameServerInfoSize = 184

	// GameServerIPFieldSize is the fixed-size IPv4 string field inside GameServerInfo.
	GameServerIPFieldSize = 16

	// GameServerInfoStackReservedSize is the zero-filled reserved region (spec §9 open question).
	GameServerInfoStackReservedSize = 112
)

// Area pool (§4.8).
const (
	// DefaultMaxEntriesPerArea bounds how many artifacts one area may hold before FIFO eviction.
	DefaultMaxEntriesPerArea = 100

	// DefaultPrimeCountPerArea is how many entries random-sampling calls try to gather by default.
	DefaultPrimeCountPerArea = 10
)
