package rudp

import (
	"encoding/binary"
	"fmt"

	"github.com/udisondev/frpg2go/internal/constants"
)

// Header is the fixed 7-byte header at the front of every RUDP packet.
type Header struct {
	Local  uint16 // our sequence for this packet, 0 for un-sequenced opcodes
	Remote uint16 // sequence we are acknowledging, 0 if none
	Opcode Opcode
}

// Encode packs h into its 7-byte wire form: magic, three ack-counter bytes,
// opcode, and a trailing reserved byte. The ack counters pack two 12-bit
// fields into three bytes: low byte of local, (high nibble of local)<<4 |
// (high nibble of remote), low byte of remote.
func (h Header) Encode() [constants.RUDPHeaderSize]byte {
	var buf [constants.RUDPHeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], constants.RUDPMagic)

	local := h.Local % constants.MaxSequence
	remote := h.Remote % constants.MaxSequence

	buf[2] = byte(local & 0xFF)
	buf[3] = byte((local>>8)&0x0F)<<4 | byte((remote>>8)&0x0F)
	buf[4] = byte(remote & 0xFF)
	buf[5] = byte(h.Opcode)
	buf[6] = constants.RUDPReservedByte
	return buf
}

// DecodeHeader parses a 7-byte RUDP header, validating the magic marker.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < constants.RUDPHeaderSize {
		return Header{}, fmt.Errorf("rudp header too short: %d bytes", len(buf))
	}

	magic := binary.BigEndian.Uint16(buf[0:2])
	if magic != constants.RUDPMagic {
		return Header{}, fmt.Errorf("bad rudp magic: %#04x", magic)
	}

	local := uint16(buf[2]) | (uint16(buf[3]>>4&0x0F) << 8)
	remote := uint16(buf[4]) | (uint16(buf[3]&0x0F) << 8)

	return Header{
		Local:  local,
		Remote: remote,
		Opcode: Opcode(buf[5]),
	}, nil
}
