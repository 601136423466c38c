// Package message implements the request/reply layer above internal/fragment
// (spec.md §4.7): per-title opcode tables, message-index bookkeeping, and
// dispatch to game-logic handlers. Grounded on original_source's
// Frpg2Message*.{h,cpp} for wire shape and on the teacher's opcode-switch
// dispatch in internal/login/handler.go for the Go idiom of routing an
// incoming message to the code that owns its opcode.
package message

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed 12-byte message header (spec.md §3, §6): message
// type (opcode) and a monotonically increasing message index. Distinct
// from protocol.MessageHeader, which frames the simpler Login/Auth TCP
// handshake messages.
const headerSize = 12

// responseSubHeaderSize follows headerSize when the message is a reply.
const responseSubHeaderSize = 16

// header is the 12-byte wire header in front of every message payload.
type header struct {
	Opcode     uint16
	MsgIndex   uint32
	IsReply    bool
}

func (h header) encode() [headerSize]byte {
	var buf [headerSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Opcode)
	if h.IsReply {
		buf[2] = 1
	}
	// buf[3:8] reserved
	binary.BigEndian.PutUint32(buf[8:12], h.MsgIndex)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("message header too short: %d bytes", len(buf))
	}
	return header{
		Opcode:   binary.BigEndian.Uint16(buf[0:2]),
		IsReply:  buf[2] != 0,
		MsgIndex: binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// responseSubHeader is the 16-byte reserved block that follows the header
// on a reply message (spec.md §6). Its contents have no known meaning in
// the reference implementation, so it is zero-filled, the same treatment
// spec.md §9 gives the Auth->Game handoff struct's reserved region. The
// RUDP-level ack hint a reply inherits from its request (spec.md §4.6 step
// 4) is plumbed between layers as a Go value (Envelope.AckHint), not wire
// content here.
type responseSubHeader struct{}

func (responseSubHeader) encode() [responseSubHeaderSize]byte {
	return [responseSubHeaderSize]byte{}
}
